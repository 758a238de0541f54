package coverage

import (
	"fmt"
	"strconv"
	"strings"
)

// phpArray is an ordered PHP array; keys are int64 or string.
type phpArray struct {
	entries []phpEntry
}

type phpEntry struct {
	key   interface{}
	value interface{}
}

// phpObject is a deserialized object. Property names keep PHP's visibility
// mangling: "\x00Class\x00name" for private and "\x00*\x00name" for
// protected properties.
type phpObject struct {
	class string
	props []phpEntry
}

// phpReference stands for r: and R: back references, which coverage data
// never needs to follow.
type phpReference struct{}

// unserialize decodes the output of PHP's serialize(). Values become nil,
// bool, int64, float64, string, *phpArray, *phpObject or phpReference.
func unserialize(data string) (interface{}, error) {
	d := &phpDecoder{data: data}

	value, err := d.value()
	if err != nil {
		return nil, err
	}

	if d.pos != len(d.data) {
		return nil, fmt.Errorf("unexpected trailing data at offset %d", d.pos)
	}

	return value, nil
}

type phpDecoder struct {
	data string
	pos  int
}

func (d *phpDecoder) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("offset %d: %s", d.pos, fmt.Sprintf(format, args...))
}

func (d *phpDecoder) expect(b byte) error {
	if d.pos >= len(d.data) || d.data[d.pos] != b {
		return d.errorf("expected %q", b)
	}

	d.pos++

	return nil
}

// until returns the text up to the next delimiter and consumes both.
func (d *phpDecoder) until(delim byte) (string, error) {
	idx := strings.IndexByte(d.data[d.pos:], delim)
	if idx < 0 {
		return "", d.errorf("missing %q", delim)
	}

	text := d.data[d.pos : d.pos+idx]
	d.pos += idx + 1

	return text, nil
}

func (d *phpDecoder) length(delim byte) (int, error) {
	text, err := d.until(delim)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, d.errorf("invalid length %q", text)
	}

	if n > d.remaining() {
		return 0, d.errorf("length %d exceeds the %d bytes left", n, d.remaining())
	}

	return n, nil
}

func (d *phpDecoder) remaining() int {
	return len(d.data) - d.pos
}

//nolint:cyclop // One case per serialized type tag.
func (d *phpDecoder) value() (interface{}, error) {
	if d.pos+1 >= len(d.data) {
		return nil, d.errorf("unexpected end of data")
	}

	tag := d.data[d.pos]

	if tag == 'N' {
		d.pos++
		return nil, d.expect(';')
	}

	d.pos++
	if err := d.expect(':'); err != nil {
		return nil, err
	}

	switch tag {
	case 'b':
		text, err := d.until(';')
		if err != nil {
			return nil, err
		}

		return text == "1", nil
	case 'i':
		text, err := d.until(';')
		if err != nil {
			return nil, err
		}

		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, d.errorf("invalid integer %q", text)
		}

		return n, nil
	case 'd':
		text, err := d.until(';')
		if err != nil {
			return nil, err
		}

		f, err := strconv.ParseFloat(strings.Replace(text, "INF", "Inf", 1), 64)
		if err != nil {
			return nil, d.errorf("invalid float %q", text)
		}

		return f, nil
	case 's':
		text, err := d.quoted()
		if err != nil {
			return nil, err
		}

		return text, d.expect(';')
	case 'E':
		text, err := d.quoted()
		if err != nil {
			return nil, err
		}

		return text, d.expect(';')
	case 'r', 'R':
		if _, err := d.until(';'); err != nil {
			return nil, err
		}

		return phpReference{}, nil
	case 'a':
		entries, err := d.entries()
		if err != nil {
			return nil, err
		}

		return &phpArray{entries: entries}, nil
	case 'O':
		class, err := d.quoted()
		if err != nil {
			return nil, err
		}

		if err := d.expect(':'); err != nil {
			return nil, err
		}

		props, err := d.entries()
		if err != nil {
			return nil, err
		}

		return &phpObject{class: class, props: props}, nil
	case 'C':
		class, err := d.quoted()
		if err != nil {
			return nil, err
		}

		if err := d.expect(':'); err != nil {
			return nil, err
		}

		n, err := d.length(':')
		if err != nil {
			return nil, err
		}

		if err := d.expect('{'); err != nil {
			return nil, err
		}

		if d.pos+n > len(d.data) {
			return nil, d.errorf("custom payload of %s exceeds data", class)
		}

		d.pos += n

		return &phpObject{class: class}, d.expect('}')
	default:
		return nil, d.errorf("unknown type tag %q", tag)
	}
}

// quoted reads `len:"bytes"`; the length counts bytes, not characters.
func (d *phpDecoder) quoted() (string, error) {
	n, err := d.length(':')
	if err != nil {
		return "", err
	}

	if err := d.expect('"'); err != nil {
		return "", err
	}

	if d.pos+n > len(d.data) {
		return "", d.errorf("string of %d bytes exceeds data", n)
	}

	text := d.data[d.pos : d.pos+n]
	d.pos += n

	return text, d.expect('"')
}

// entries reads `count:{key;value...}`.
func (d *phpDecoder) entries() ([]phpEntry, error) {
	n, err := d.length(':')
	if err != nil {
		return nil, err
	}

	if err := d.expect('{'); err != nil {
		return nil, err
	}

	// Every entry takes at least four bytes ("i:0;N;").
	entries := make([]phpEntry, 0, min(n, d.remaining()/4))

	for i := 0; i < n; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}

		switch key.(type) {
		case int64, string:
		default:
			return nil, d.errorf("invalid array key of type %T", key)
		}

		value, err := d.value()
		if err != nil {
			return nil, err
		}

		entries = append(entries, phpEntry{key: key, value: value})
	}

	return entries, d.expect('}')
}

// propertyName strips visibility mangling from a serialized property name.
func propertyName(key interface{}) string {
	name, ok := key.(string)
	if !ok {
		return ""
	}

	if strings.HasPrefix(name, "\x00") {
		if idx := strings.LastIndexByte(name, 0); idx >= 0 {
			return name[idx+1:]
		}
	}

	return name
}
