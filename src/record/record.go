// Package record turns model answers into flat, string-valued table rows.
package record

import (
	"fmt"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
)

// Result is one extraction result. It is exactly one of Flat, Structured or Typed.
type Result interface {
	isResult()
}

// Flat is a plain field mapping. Fields keeps the order the model produced.
type Flat struct {
	Fields *orderedmap.OrderedMap
}

// Structured is a summary shared by a list of transactions.
type Structured struct {
	Summary      *orderedmap.OrderedMap
	Transactions []*orderedmap.OrderedMap
}

// Typed wraps a Go struct (or a pointer to one). Its exported fields become columns,
// named by their json tag.
type Typed struct {
	Value any
}

func (Flat) isResult()       {}
func (Structured) isResult() {}
func (Typed) isResult()      {}

// Profile is the fixed shape requested by the default system prompt.
type Profile struct {
	UserName       string `json:"user_name" mapstructure:"user_name"`
	FollowerCount  string `json:"follower_count" mapstructure:"follower_count"`
	FollowingCount string `json:"following_count" mapstructure:"following_count"`
	PostsCount     string `json:"posts_count" mapstructure:"posts_count"`
	Summary        string `json:"summary" mapstructure:"summary"`
}

// Mode selects how model text is decoded.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeProfile Mode = "profile"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeProfile:
		return ModeProfile, nil
	}
	return "", fmt.Errorf("unknown result mode %q (expected auto or profile)", s)
}

// EmptyFlat returns a Flat result without fields.
func EmptyFlat() Flat {
	return Flat{Fields: orderedmap.New()}
}
