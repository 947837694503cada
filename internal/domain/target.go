package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetKind — вид когорты для раздачи купона.
type TargetKind int

const (
	// TargetAll — все активные участники.
	TargetAll TargetKind = iota + 1

	// TargetLevel — активные участники заданного уровня.
	TargetLevel
)

// TargetAllDescriptor — строковый дескриптор когорты «все».
const TargetAllDescriptor = "all"

// Target — разобранный дескриптор когорты: All или Level(id).
type Target struct {
	Kind    TargetKind
	LevelID int64
}

// AllMembers возвращает Target для всех активных участников.
func AllMembers() Target {
	return Target{Kind: TargetAll}
}

// MembersOfLevel возвращает Target для участников уровня.
func MembersOfLevel(levelID int64) Target {
	return Target{Kind: TargetLevel, LevelID: levelID}
}

// ParseTarget разбирает action_parameter в Target.
//
// "all" → All, положительное целое → Level(id), иначе ErrInvalidTarget.
func ParseTarget(descriptor string) (Target, error) {
	s := strings.TrimSpace(descriptor)
	if strings.EqualFold(s, TargetAllDescriptor) {
		return AllMembers(), nil
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, descriptor)
	}
	return MembersOfLevel(id), nil
}

// String возвращает дескриптор в исходном строковом виде.
func (t Target) String() string {
	switch t.Kind {
	case TargetAll:
		return TargetAllDescriptor
	case TargetLevel:
		return strconv.FormatInt(t.LevelID, 10)
	default:
		return "invalid"
	}
}
