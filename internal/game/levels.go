package game

import "strings"

// Level is the public view of a level: the registry record joined with its ledger counters.
type Level struct {
	ID                 uint64 `json:"id"`
	ImageURL           string `json:"image_url"`
	Initialized        bool   `json:"initialized"`
	MintsSoFar         uint64 `json:"mints_so_far"`
	MintsWithoutAnswer uint64 `json:"mints_without_answer"`
	// AnswerHash is the stored inner commitment. Never sent to players.
	AnswerHash string `json:"-"`
}

type levelRecord struct {
	ID          uint64
	ImageURL    string
	AnswerHash  string
	Initialized bool
}

// LevelRegistry is the append-only list of levels plus the active-level pointer.
// Level ids are 1-based: levels[i] has id i+1.
type LevelRegistry struct {
	levels []*levelRecord
	active uint64
}

func (r *LevelRegistry) Count() uint64 { return uint64(len(r.levels)) }

func (r *LevelRegistry) Active() uint64 { return r.active }

func (r *LevelRegistry) inRange(id uint64) bool {
	return id >= 1 && id <= r.Count()
}

func (r *LevelRegistry) get(id uint64) (*levelRecord, bool) {
	if !r.inRange(id) {
		return nil, false
	}
	return r.levels[id-1], true
}

func (r *LevelRegistry) create(t *txn, imageURL, answerHash string) (uint64, error) {
	if strings.TrimSpace(imageURL) == "" {
		return 0, newError(KindValidation, ReasonEmptyImageURL)
	}
	if strings.TrimSpace(answerHash) == "" {
		return 0, newError(KindValidation, ReasonEmptyAnswerHash)
	}
	id := r.Count() + 1
	n := len(r.levels)
	t.record(func() { r.levels = r.levels[:n] })
	r.levels = append(r.levels, &levelRecord{
		ID:          id,
		ImageURL:    imageURL,
		AnswerHash:  answerHash,
		Initialized: true,
	})
	return id, nil
}

func (r *LevelRegistry) update(t *txn, id uint64, initialized bool, imageURL string) error {
	lv, ok := r.get(id)
	if !ok {
		return newError(KindValidation, ReasonInvalidLevel)
	}
	setBool(t, &lv.Initialized, initialized)
	setString(t, &lv.ImageURL, imageURL)
	return nil
}

func (r *LevelRegistry) setActive(t *txn, id uint64) error {
	if !r.inRange(id) {
		return newError(KindValidation, ReasonInvalidLevel)
	}
	setUint64(t, &r.active, id)
	return nil
}
