package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

// defaultMap is a KEY=VALUE;KEY=VALUE flag value.
type defaultMap map[string]string

func (d defaultMap) String() string {
	if d == nil {
		return ""
	}

	var result strings.Builder

	for k, v := range d {
		result.WriteString(fmt.Sprintf("%s=%s;", k, v))
	}

	return result.String()
}

func (d defaultMap) Set(s string) error {
	pairs := strings.Split(s, ";")
	for i := range pairs {
		if pairs[i] == "" {
			continue
		}
		kv := strings.SplitN(pairs[i], "=", 2)
		if len(kv) != 2 {
			return errors.Newf("invalid defaults value %q", pairs[i])
		}

		d[kv[0]] = kv[1]
	}

	return nil
}

func (d defaultMap) Type() string {
	return "KEY=VALUE;..."
}

var (
	aliases = map[string][]string{
		"EXPTIME": {"EXPOSURE"},
	}

	checkSuffix = regexp.MustCompile(`%\d*d`)
)

// token is literal text or a {KEY} / {KEY:format} header reference of a
// file name template.
type token struct {
	raw    bool
	header string
	format string
}

// template renders file names from header values.
type template struct {
	tokens    []token
	defaults  defaultMap
	overrides defaultMap
	noSpace   bool
}

func newTemplate(pattern string, defaults, overrides defaultMap, noSpace bool) *template {
	return &template{
		tokens:    scanForTokens(pattern),
		defaults:  defaults,
		overrides: overrides,
		noSpace:   noSpace,
	}
}

func (tp *template) render(hdr *common.Header) (string, error) {
	var result strings.Builder

	for _, tok := range tp.tokens {
		item, err := tp.convert(tok, hdr)
		if err != nil {
			return "", err
		}
		if tp.noSpace {
			item = strings.ReplaceAll(item, " ", "_")
		}
		result.WriteString(item)
	}

	return result.String(), nil
}

func (tp *template) lookup(hdr *common.Header, key string) interface{} {
	if or, ok := tp.overrides[key]; ok {
		return or
	}

	if c, ok := hdr.Get(key); ok && c.Value != nil {
		return c.Value
	}

	if d, ok := tp.defaults[key]; ok {
		return d
	}

	return nil
}

func (tp *template) convert(t token, hdr *common.Header) (string, error) {
	if t.raw {
		return t.header, nil
	}

	val := tp.lookup(hdr, t.header)

	if val == nil || val == "" {
		for _, a := range aliases[t.header] {
			if val = tp.lookup(hdr, a); val != nil {
				break
			}
		}

		if val == nil || val == "" {
			return "", errors.NotFoundf("file is missing fits header %s", t.header)
		}
	}

	switch val := val.(type) {
	case string:
		if strings.HasPrefix(t.format, "date") {
			parsed, err := time.ParseInLocation("2006-01-02T15:04:05.999999999Z", val, time.UTC)
			if err != nil {
				parsed, err = time.ParseInLocation("2006-01-02T15:04:05.999999999", val, time.UTC)

				if err != nil {
					return "", errors.Formatf("unable to parse %s as a timestamp", val)
				}
			}

			if t.format == "dateunix" {
				return fmt.Sprintf("%d", parsed.Unix()), nil
			}

			return parsed.Format(t.format[4:]), nil
		}

		return strings.TrimSpace(val), nil

	case bool:
		if t.format == "" {
			return fmt.Sprintf("%t", val), nil
		}
		return fmt.Sprintf(t.format, val), nil

	case int64:
		if t.format == "" {
			return fmt.Sprintf("%d", val), nil
		}

		if strings.Index(t.format, "f") > 0 {
			return fmt.Sprintf(t.format, float64(val)), nil
		}

		return fmt.Sprintf(t.format, val), nil

	case float64:
		if t.format == "" {
			return fmt.Sprintf("%f", val), nil
		}

		if strings.Index(t.format, "d") > 0 {
			return fmt.Sprintf(t.format, int64(val)), nil
		}

		return fmt.Sprintf(t.format, val), nil
	}

	return "", errors.Unsupportedf("unknown type %T for fits header %s", val, t.header)
}

func scanForTokens(data string) []token {
	var tokens []token

	for i := 0; i < len(data); i++ {
		nextTokenStart := strings.Index(data[i:], "{")
		nextTokenEnd := strings.Index(data[i:], "}")

		if nextTokenStart == 0 && nextTokenEnd > 0 {
			// we are inside a {} token, let's look for a format specifier
			formatIndex := strings.Index(data[i:i+nextTokenEnd], ":")
			if formatIndex > 0 {
				tokens = append(tokens, token{
					raw:    false,
					header: data[i+1 : i+formatIndex],
					format: data[i+formatIndex+1 : i+nextTokenEnd],
				})
			} else {
				tokens = append(tokens, token{raw: false, header: data[i+1 : i+nextTokenEnd]})
			}
			i += nextTokenEnd
		} else if nextTokenStart > 0 {
			tokens = append(tokens, token{raw: true, header: data[i : i+nextTokenStart]})
			i += nextTokenStart - 1
		} else {
			tokens = append(tokens, token{raw: true, header: data[i:]})
			break
		}
	}

	return tokens
}

// getFileNumberPath returns path unchanged when it is free, otherwise the
// first free name with suffix (formatted with a counter) inserted before
// the extension. Names in taken count as used.
func getFileNumberPath(path, suffix string, taken map[string]bool) string {
	if !exists(path, taken) {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 0; ; i++ {
		testPath := stem + fmt.Sprintf(suffix, i) + ext

		if !exists(testPath, taken) {
			return testPath
		}
	}
}

func exists(path string, taken map[string]bool) bool {
	if taken[path] {
		return true
	}
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
