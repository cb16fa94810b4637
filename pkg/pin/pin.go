// Package pin holds the identifiers of the usable gpio pins (BCM numbering)
package pin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ID identifies one gpio pin by its BCM number.
// The zero value is not a valid pin.
type ID int

const (
	GPIO2 ID = iota + 2
	GPIO3
	GPIO4
	GPIO5
	GPIO6
	GPIO7
	GPIO8
	GPIO9
	GPIO10
	GPIO11
	GPIO12
	GPIO13
	GPIO14
	GPIO15
	GPIO16
	GPIO17
	GPIO18
	GPIO19
	GPIO20
	GPIO21
	GPIO22
	GPIO23
	GPIO24
	GPIO25
	GPIO26
	GPIO27
)

const (
	// First is the lowest usable pin.
	First = GPIO2
	// Last is the highest usable pin.
	Last = GPIO27
	// Count is the number of usable pins.
	Count = int(Last-First) + 1
)

// InvalidError is returned if a number is outside the range of usable pins.
type InvalidError struct {
	Value int
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid pin identifier %d (valid %d..%d)", e.Value, First, Last)
}

// New converts a BCM number to a pin identifier.
func New(bcm int) (ID, error) {
	id := ID(bcm)
	if !id.Valid() {
		return 0, &InvalidError{Value: bcm}
	}
	return id, nil
}

// FromIndex converts a compact index 0..Count-1 to a pin identifier.
func FromIndex(i int) (ID, error) {
	if i < 0 || i >= Count {
		return 0, &InvalidError{Value: i + int(First)}
	}
	return First + ID(i), nil
}

// Parse accepts "GPIO12", "gpio12" and "12".
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if len(s) > 4 && strings.EqualFold(s[:4], "gpio") {
		s = s[4:]
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse pin %q: %w", s, err)
	}
	return New(n)
}

// Valid reports whether id is one of the usable pins.
func (id ID) Valid() bool {
	return id >= First && id <= Last
}

// Int returns the BCM number.
func (id ID) Int() int {
	return int(id)
}

// Index returns the compact index 0..Count-1.
func (id ID) Index() int {
	return int(id - First)
}

func (id ID) String() string {
	return "GPIO" + strconv.Itoa(int(id))
}

// Ints converts a list of BCM numbers, all numbers must be valid.
func Ints(numbers []int) ([]ID, error) {
	ids := make([]ID, len(numbers))
	for i, n := range numbers {
		id, err := New(n)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Sort sorts ids in ascending order and returns them.
func Sort(ids []ID) []ID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Duplicates returns each pin that appears more than once in ids, sorted.
func Duplicates(ids []ID) []ID {
	seen := make(map[ID]int, len(ids))
	var dup []ID
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dup = append(dup, id)
		}
	}
	return Sort(dup)
}

// Join formats ids as a comma separated list.
func Join(ids []ID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return strings.Join(s, ", ")
}
