package pcd

import (
	"encoding/json"
	"fmt"
)

// Pair is an unordered pair of flight ids. The element order only
// records the order in which the player clicked; it never affects
// equality.
type Pair [2]string

func NewPair(a, b string) Pair { return Pair{a, b} }

func (p Pair) First() string  { return p[0] }
func (p Pair) Second() string { return p[1] }

// Valid reports whether the pair references two distinct, non-empty ids.
func (p Pair) Valid() bool {
	return p[0] != "" && p[1] != "" && p[0] != p[1]
}

// Equal reports whether both pairs reference the same set of ids.
func (p Pair) Equal(o Pair) bool {
	return (p[0] == o[0] && p[1] == o[1]) || (p[0] == o[1] && p[1] == o[0])
}

// Key returns an order-independent identifier suitable for map keys.
func (p Pair) Key() string {
	a, b := p[0], p[1]
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func (p Pair) Contains(id string) bool {
	return p[0] == id || p[1] == id
}

// Other returns the id paired with id, or "" when id is not in the pair.
func (p Pair) Other(id string) string {
	switch id {
	case p[0]:
		return p[1]
	case p[1]:
		return p[0]
	}
	return ""
}

func (p Pair) String() string { return fmt.Sprintf("(%s, %s)", p[0], p[1]) }

type pairJSON struct {
	FirstID  string `json:"firstId"`
	SecondID string `json:"secondId"`
}

func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal(pairJSON{FirstID: p[0], SecondID: p[1]})
}

func (p *Pair) UnmarshalJSON(b []byte) error {
	var v pairJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Pair{v.FirstID, v.SecondID}
	return nil
}

// IndexPair returns the index of the first pair in pairs equal to p, or -1.
func IndexPair(pairs []Pair, p Pair) int {
	for i, q := range pairs {
		if q.Equal(p) {
			return i
		}
	}
	return -1
}

// ContainsPair reports whether pairs holds a pair equal to p.
func ContainsPair(pairs []Pair, p Pair) bool {
	return IndexPair(pairs, p) >= 0
}

// Intersect counts the pairs of guesses that also appear in solution.
// Duplicate guesses are counted once.
func Intersect(guesses, solution []Pair) int {
	seen := make(map[string]struct{}, len(guesses))
	n := 0
	for _, g := range guesses {
		k := g.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if ContainsPair(solution, g) {
			n++
		}
	}
	return n
}
