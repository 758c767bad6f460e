package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

const jsonIndent = "  "

// Frequency is the occurrence count of one token.
type Frequency struct {
	Token string
	Count int
}

// FrequencyTable counts tokens and remembers the order they were first seen
// in, which breaks ties when sorting.
type FrequencyTable struct {
	index   map[string]int
	entries []Frequency
}

// NewFrequencyTable creates an empty table.
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{
		index:   make(map[string]int),
		entries: nil,
	}
}

// Add counts one occurrence of token.
func (t *FrequencyTable) Add(token string) {
	t.addCount(token, 1)
}

// Merge adds every count of other. Tokens new to t are appended in the order
// other first saw them.
func (t *FrequencyTable) Merge(other *FrequencyTable) {
	for _, entry := range other.entries {
		t.addCount(entry.Token, entry.Count)
	}
}

// Len returns the number of distinct tokens.
func (t *FrequencyTable) Len() int {
	return len(t.entries)
}

// Count returns the occurrences of token.
func (t *FrequencyTable) Count(token string) int {
	position, ok := t.index[token]
	if !ok {
		return 0
	}

	return t.entries[position].Count
}

// Sorted returns the entries by descending count; equal counts keep their
// first-seen order.
func (t *FrequencyTable) Sorted() []Frequency {
	sorted := slices.Clone(t.entries)

	slices.SortStableFunc(sorted, func(a, b Frequency) int {
		return b.Count - a.Count
	})

	return sorted
}

// MarshalJSON writes the sorted table as a single object indented by two
// spaces, keys in descending count order.
func (t *FrequencyTable) MarshalJSON() ([]byte, error) {
	sorted := t.Sorted()
	if len(sorted) == 0 {
		return []byte("{}"), nil
	}

	var buffer bytes.Buffer

	buffer.WriteString("{\n")

	for position, entry := range sorted {
		key, err := encodeKey(entry.Token)
		if err != nil {
			return nil, err
		}

		buffer.WriteString(jsonIndent)
		buffer.Write(key)
		fmt.Fprintf(&buffer, ": %d", entry.Count)

		if position < len(sorted)-1 {
			buffer.WriteByte(',')
		}

		buffer.WriteByte('\n')
	}

	buffer.WriteByte('}')

	return buffer.Bytes(), nil
}

func (t *FrequencyTable) addCount(token string, count int) {
	position, ok := t.index[token]
	if ok {
		t.entries[position].Count += count

		return
	}

	t.index[token] = len(t.entries)
	t.entries = append(t.entries, Frequency{Token: token, Count: count})
}

func encodeKey(token string) ([]byte, error) {
	var buffer bytes.Buffer

	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)

	err := encoder.Encode(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token %q: %w", token, err)
	}

	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}
