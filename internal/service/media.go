package service

import (
	"strconv"
	"strings"

	"github.com/set-night/imagebroker/internal/domain"
)

const (
	RefLast       = "last"
	HistoryPrefix = "history:"
)

// MediaHistory keeps the most recent artifacts of a session, oldest first.
// It is not safe for concurrent use; callers hold the session lock.
type MediaHistory struct {
	records  []domain.MediaRecord
	capacity int
}

func NewMediaHistory(capacity int) *MediaHistory {
	if capacity <= 0 {
		capacity = 1
	}
	return &MediaHistory{capacity: capacity}
}

// Append inserts at the tail and evicts from the head once over capacity.
func (h *MediaHistory) Append(record domain.MediaRecord) {
	h.records = append(h.records, record)
	if over := len(h.records) - h.capacity; over > 0 {
		h.records = append(h.records[:0:0], h.records[over:]...)
	}
}

// Lookup implements the history half of the reference grammar. Strings that
// are neither "last" nor "history:<N>" report false and are left to the
// caller's path handling.
func (h *MediaHistory) Lookup(ref string) (domain.MediaRecord, bool) {
	idx, ok := h.index(ref)
	if !ok {
		return domain.MediaRecord{}, false
	}
	return h.records[idx], true
}

func (h *MediaHistory) index(ref string) (int, bool) {
	if ref == RefLast {
		if len(h.records) == 0 {
			return 0, false
		}
		return len(h.records) - 1, true
	}

	suffix, ok := strings.CutPrefix(ref, HistoryPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(suffix, 10, 0)
	if err != nil || n >= uint64(len(h.records)) {
		return 0, false
	}
	return int(n), true
}

// IsHistoryRef reports whether ref uses the history grammar, regardless of
// whether it currently resolves.
func IsHistoryRef(ref string) bool {
	if ref == RefLast {
		return true
	}
	suffix, ok := strings.CutPrefix(ref, HistoryPrefix)
	if !ok {
		return false
	}
	_, err := strconv.ParseUint(suffix, 10, 0)
	return err == nil
}

// Recent returns up to n newest records in insertion order.
func (h *MediaHistory) Recent(n int) []domain.MediaRecord {
	if n <= 0 || len(h.records) == 0 {
		return nil
	}
	start := max(len(h.records)-n, 0)
	return append([]domain.MediaRecord(nil), h.records[start:]...)
}

// Records returns a copy of the history, oldest first.
func (h *MediaHistory) Records() []domain.MediaRecord {
	return append([]domain.MediaRecord(nil), h.records...)
}

func (h *MediaHistory) Len() int {
	return len(h.records)
}

func (h *MediaHistory) Capacity() int {
	return h.capacity
}

func HistoryRef(index int) string {
	return HistoryPrefix + strconv.Itoa(index)
}
