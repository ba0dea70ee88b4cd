package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// TagMap counts contacts by an integer key: a filter code or a multiplicity.
type TagMap map[int]int

// Update adds the counts of other.
func (tm TagMap) Update(other TagMap) {
	for k, v := range other {
		tm[k] += v
	}
}

// Total returns the sum of all counts.
func (tm TagMap) Total() (sum int) {
	for _, v := range tm {
		sum += v
	}
	return
}

// Keys returns the keys of tm in increasing order.
func (tm TagMap) Keys() []int {
	keys := make([]int, 0, len(tm))
	for k := range tm {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// MarshalJSON writes tm as an object with numerically sorted keys.
func (tm TagMap) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range tm.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, "\"%d\":%d", k, tm[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object with integer keys.
func (tm *TagMap) UnmarshalJSON(b []byte) error {
	smap := make(map[string]int)
	if err := json.Unmarshal(b, &smap); err != nil {
		return err
	}
	m := make(TagMap, len(smap))
	for key, value := range smap {
		k, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid key %q", key)
		}
		m[k] = value
	}
	*tm = m
	return nil
}
