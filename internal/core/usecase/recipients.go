package usecase

import (
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLength      = 255
	commentPreviewLimit = 100
)

// normalizeIDs: trim, отбросить пустые, убрать дубликаты с сохранением порядка.
func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// idsFromAny извлекает строки из нетипизированного значения changedFields.
// nil - значение отсутствует; не-массив - ошибка формата.
func idsFromAny(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			ids = append(ids, s)
		}
	}
	return normalizeIDs(ids), true
}

// recipientSet - множество с порядком вставки.
type recipientSet struct {
	order []string
	index map[string]struct{}
}

func newRecipientSet() *recipientSet {
	return &recipientSet{index: make(map[string]struct{})}
}

func (s *recipientSet) add(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.index[id]; ok {
			continue
		}
		s.index[id] = struct{}{}
		s.order = append(s.order, id)
	}
}

func (s *recipientSet) remove(id string) {
	if id == "" {
		return
	}
	if _, ok := s.index[id]; !ok {
		return
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *recipientSet) has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *recipientSet) list() []string {
	return append([]string(nil), s.order...)
}

// truncateRunes обрезает строку до limit символов (не байт).
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
