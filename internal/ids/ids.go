package ids

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPatient Kind = "patient"
	KindQueue   Kind = "queue"
	KindNote    Kind = "note"
	KindHistory Kind = "history"
)

// DefaultRetryLimit bounds collision retries in NewChecked.
const DefaultRetryLimit = 5

var ErrExhaustedRetries = errors.New("id generation exhausted retries")

var prefixes = map[Kind]string{
	KindPatient: "PAT_",
	KindQueue:   "Q_",
	KindNote:    "NOTE_",
	KindHistory: "HIST_",
}

// Prefix returns the id prefix for kind, or "" for an unknown kind.
func Prefix(kind Kind) string {
	return prefixes[kind]
}

// New returns a prefixed id such as "Q_3F9A01BC7D42".
func New(kind Kind) string {
	return Prefix(kind) + randomSuffix()
}

// Generator draws ids and optionally verifies them against an existing set.
type Generator struct {
	retryLimit int
	draw       func() string
}

func NewGenerator(retryLimit int) *Generator {
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}
	return &Generator{
		retryLimit: retryLimit,
		draw:       randomSuffix,
	}
}

// New returns an unchecked id of the given kind.
func (g *Generator) New(kind Kind) string {
	return Prefix(kind) + g.draw()
}

// NewChecked draws until exists reports the id unused. After retryLimit
// collisions it gives up with ErrExhaustedRetries.
func (g *Generator) NewChecked(kind Kind, exists func(id string) bool) (string, error) {
	for attempt := 0; attempt < g.retryLimit; attempt++ {
		id := g.New(kind)
		if exists == nil || !exists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%s id after %d attempts: %w", kind, g.retryLimit, ErrExhaustedRetries)
}

// suffixLen hex characters give 48 random bits per id.
const suffixLen = 12

func randomSuffix() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:suffixLen])
}
