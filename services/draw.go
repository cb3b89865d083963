package services

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"market-cards-scoring/models"
)

// RandomSource picks uniformly in [0, n).
type RandomSource interface {
	Intn(n int) int
}

// lockedRand makes a math/rand generator safe for concurrent requests.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// NewRandomSource seeds a PRNG. A zero seed is replaced by one read from crypto/rand.
func NewRandomSource(seed int64) (RandomSource, error) {
	if seed == 0 {
		var err error
		if seed, err = newSeed(); err != nil {
			return nil, err
		}
	}
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}, nil
}

func newSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// DrawRequest asks for a market event. Mode falls back to the session mode
// when empty. Phase pins an automated draw to one pool; CardID is the
// facilitator's pick in in-person mode.
type DrawRequest struct {
	Mode   models.Mode  `json:"mode"`
	Phase  models.Phase `json:"phase"`
	CardID string       `json:"card_id"`
}

// Draw is a proposed event. Nothing is stored until a round is started with it.
type Draw struct {
	Phase models.Phase      `json:"phase"`
	Card  *models.ColorCard `json:"card"`
}

// Drawer selects market events from the catalog.
type Drawer struct {
	Catalog *CatalogService
	Rand    RandomSource
}

func NewDrawer(catalog *CatalogService, rnd RandomSource) *Drawer {
	return &Drawer{Catalog: catalog, Rand: rnd}
}

// Random picks a phase (unless one is given) and then a card within its pool.
// An empty pool yields ErrNoCardsForPhase along with the phase that was drawn,
// so the caller can redraw.
func (d *Drawer) Random(phase models.Phase) (Draw, error) {
	if phase == "" {
		phase = models.Phases[d.Rand.Intn(len(models.Phases))]
	} else if !phase.Valid() {
		return Draw{}, fmt.Errorf("%w %q", models.ErrUnknownPhase, phase)
	}

	pool, err := d.Catalog.ColorCardsByPhase(phase)
	if err != nil {
		return Draw{}, err
	}
	if len(pool) == 0 {
		return Draw{Phase: phase}, fmt.Errorf("%s: %w", phase, ErrNoCardsForPhase)
	}
	card := pool[d.Rand.Intn(len(pool))]
	return Draw{Phase: phase, Card: &card}, nil
}

// Manual returns the facilitator's card; its phase comes from the card.
func (d *Drawer) Manual(cardID string) (Draw, error) {
	if cardID == "" {
		return Draw{}, ErrCardRequired
	}
	card, err := d.Catalog.GetColorCard(cardID)
	if err != nil {
		return Draw{}, err
	}
	return Draw{Phase: card.Phase, Card: card}, nil
}
