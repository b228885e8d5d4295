package common

// Builder derives a new Header from an existing one without touching it.
type Builder struct {
	cards   []Card
	deleted map[string]bool
}

// NewBuilder starts from a clone of from, which may be nil.
func NewBuilder(from *Header) *Builder {
	return &Builder{cards: from.Cards(), deleted: map[string]bool{}}
}

// Set replaces the value of key in place, or appends a new card.
func (b *Builder) Set(key string, value interface{}, comment string) *Builder {
	delete(b.deleted, key)
	for i := range b.cards {
		if b.cards[i].Key == key && !isCommentary(key) {
			b.cards[i].Value = value
			if comment != "" {
				b.cards[i].Comment = comment
			}
			return b
		}
	}
	b.cards = append(b.cards, Card{Key: key, Value: value, Comment: comment})
	return b
}

// Delete removes every card with one of keys.
func (b *Builder) Delete(keys ...string) *Builder {
	for _, k := range keys {
		b.deleted[k] = true
	}
	return b
}

// Build returns the new Header.
func (b *Builder) Build() *Header {
	cards := make([]Card, 0, len(b.cards))
	for _, c := range b.cards {
		if b.deleted[c.Key] {
			continue
		}
		cards = append(cards, c)
	}
	return NewHeader(cards...)
}
