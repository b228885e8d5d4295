package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Card is a single header keyword. Value is one of string, bool, int64,
// float64 or nil.
type Card struct {
	Key     string
	Value   interface{}
	Comment string
}

// Header is an ordered sequence of cards. A Header is not mutated once
// built; use Builder to derive a new one.
type Header struct {
	cards []Card
	index map[string]int
}

// NewHeader builds a header from cards. Later duplicates of a key replace
// the value of the earlier card and keep its position, except COMMENT and
// HISTORY which are always appended.
func NewHeader(cards ...Card) *Header {
	h := &Header{index: make(map[string]int, len(cards))}
	for _, c := range cards {
		h.put(c)
	}
	return h
}

func (h *Header) put(c Card) {
	c.Value = Normalize(c.Value)
	if isCommentary(c.Key) {
		h.cards = append(h.cards, c)
		return
	}
	if i, ok := h.index[c.Key]; ok {
		h.cards[i] = c
		return
	}
	h.index[c.Key] = len(h.cards)
	h.cards = append(h.cards, c)
}

func isCommentary(key string) bool {
	return key == "COMMENT" || key == "HISTORY" || key == ""
}

// Len returns the number of cards.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.cards)
}

// Cards returns a copy of the cards in order.
func (h *Header) Cards() []Card {
	if h == nil {
		return nil
	}
	out := make([]Card, len(h.cards))
	copy(out, h.cards)
	return out
}

// Keys returns the card keys in order.
func (h *Header) Keys() []string {
	if h == nil {
		return nil
	}
	keys := make([]string, 0, len(h.cards))
	for _, c := range h.cards {
		keys = append(keys, c.Key)
	}
	return keys
}

func (h *Header) Get(key string) (Card, bool) {
	if h == nil {
		return Card{}, false
	}
	i, ok := h.index[key]
	if !ok {
		return Card{}, false
	}
	return h.cards[i], true
}

func (h *Header) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// String returns the value of key as a trimmed string.
func (h *Header) String(key string) (string, bool) {
	c, ok := h.Get(key)
	if !ok {
		return "", false
	}
	s, ok := c.Value.(string)
	return strings.TrimSpace(s), ok
}

// Int returns the value of key as an integer. Integral floats are accepted.
func (h *Header) Int(key string) (int64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	}
	return 0, false
}

// Float returns the value of key as a float. Integers are accepted.
func (h *Header) Float(key string) (float64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (h *Header) Bool(key string) (bool, bool) {
	c, ok := h.Get(key)
	if !ok {
		return false, false
	}
	b, ok := c.Value.(bool)
	return b, ok
}

// FloatOr returns Float(key) or def when the key is absent.
func (h *Header) FloatOr(key string, def float64) float64 {
	if v, ok := h.Float(key); ok {
		return v
	}
	return def
}

// IntOr returns Int(key) or def when the key is absent.
func (h *Header) IntOr(key string, def int64) int64 {
	if v, ok := h.Int(key); ok {
		return v
	}
	return def
}

// Clone returns an independent copy.
func (h *Header) Clone() *Header {
	if h == nil {
		return NewHeader()
	}
	return NewHeader(h.cards...)
}

// Normalize converts header values to the types a Card may hold.
func Normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case nil, string, bool, int64, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case complex64, complex128:
		return fmt.Sprint(v)
	default:
		return v
	}
}

// FormatValue renders a card value the way a header listing shows it.
func FormatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "T"
		}
		return "F"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'G', -1, 64)
	}
	return fmt.Sprint(v)
}
