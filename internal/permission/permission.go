// Package permission decides who may create, manage and edit pages in a room.
// Everything here is pure: callers pass in the room settings and page state.
package permission

import (
	"strings"

	"github.com/samber/lo"
)

// Who besides the owner and the page creator may edit a page
type Mode string

const (
	ModeEveryone Mode = "everyone"
	ModeSelected Mode = "selected"
	ModeReadonly Mode = "readonly"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeEveryone, ModeSelected, ModeReadonly:
		return true
	}
	return false
}

type PageCreation string

const (
	CreationAnyone PageCreation = "anyone"
	CreationOwner  PageCreation = "owner"
)

type DefaultEdit string

const (
	EditEveryone DefaultEdit = "everyone"
	EditCreator  DefaultEdit = "creator"
)

// Per-page access policy. Editors is only populated in ModeSelected.
type Permissions struct {
	Mode    Mode     `json:"mode"`
	Editors []string `json:"editors"`
}

// Clone returns a copy that shares no memory with p.
func (p Permissions) Clone() Permissions {
	editors := make([]string, len(p.Editors))
	copy(editors, p.Editors)
	return Permissions{Mode: p.Mode, Editors: editors}
}

func (p Permissions) Equal(other Permissions) bool {
	if p.Mode != other.Mode || len(p.Editors) != len(other.Editors) {
		return false
	}
	for i := range p.Editors {
		if p.Editors[i] != other.Editors[i] {
			return false
		}
	}
	return true
}

// Room level settings
type Settings struct {
	PageCreation PageCreation `json:"pageCreation"`
	DefaultEdit  DefaultEdit  `json:"defaultEdit"`
}

func DefaultSettings() Settings {
	return Settings{PageCreation: CreationAnyone, DefaultEdit: EditEveryone}
}

// SanitizeSettings replaces unknown values with the defaults.
func SanitizeSettings(s Settings) Settings {
	out := DefaultSettings()
	if s.PageCreation == CreationAnyone || s.PageCreation == CreationOwner {
		out.PageCreation = s.PageCreation
	}
	if s.DefaultEdit == EditEveryone || s.DefaultEdit == EditCreator {
		out.DefaultEdit = s.DefaultEdit
	}
	return out
}

// ForNewPage returns the permissions a freshly created page starts with.
func ForNewPage(s Settings) Permissions {
	if s.DefaultEdit == EditCreator {
		return Permissions{Mode: ModeSelected, Editors: []string{}}
	}
	return Permissions{Mode: ModeEveryone, Editors: []string{}}
}

// Page is the part of a page access decisions look at.
type Page interface {
	Creator() string
	Access() Permissions
}

// Scope narrows the editor set to people that can actually hold an explicit grant.
type Scope struct {
	Participants map[string]struct{}
	OwnerID      string
	CreatorID    string
}

func (s *Scope) allows(id string) bool {
	if s == nil {
		return true
	}
	if id == s.OwnerID || id == s.CreatorID {
		return false
	}
	_, ok := s.Participants[id]
	return ok
}

func CanCreatePage(settings Settings, actorID, ownerID string) bool {
	if settings.PageCreation != CreationOwner {
		return true
	}
	return actorID != "" && actorID == ownerID
}

func CanManagePage(page Page, actorID, ownerID string) bool {
	if page == nil || actorID == "" {
		return false
	}
	return actorID == ownerID || actorID == page.Creator()
}

func CanEditPage(page Page, actorID, ownerID string) bool {
	if CanManagePage(page, actorID, ownerID) {
		return true
	}
	if page == nil || actorID == "" {
		return false
	}
	access := page.Access()
	switch access.Mode {
	case ModeReadonly:
		return false
	case ModeSelected:
		return lo.Contains(access.Editors, actorID)
	default:
		return true
	}
}

// Sanitize normalizes an externally supplied permission object. Unknown modes
// fall back to fallback (or everyone when fallback itself is unknown), blank
// and duplicate editor ids are dropped, and editors only survive in
// ModeSelected. A non-nil scope additionally removes ids that are not room
// participants or that already have implicit access.
func Sanitize(in Permissions, fallback Mode, scope *Scope) Permissions {
	mode := in.Mode
	if !mode.Valid() {
		mode = fallback
	}
	if !mode.Valid() {
		mode = ModeEveryone
	}

	editors := []string{}
	if mode == ModeSelected {
		editors = lo.Uniq(lo.Filter(in.Editors, func(id string, _ int) bool {
			return strings.TrimSpace(id) != "" && scope.allows(id)
		}))
	}

	return Permissions{Mode: mode, Editors: editors}
}
