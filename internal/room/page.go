package room

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/manpreetbhatti/coderoom/backend/internal/permission"
	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

const (
	MaxPageNameLength = 64
	DefaultLanguage   = "javascript"
)

// One editable tab within a room
type Page struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Language    string                 `json:"language"`
	Code        string                 `json:"code"`
	Stdin       string                 `json:"stdin"`
	Output      string                 `json:"output"`
	CreatedBy   string                 `json:"createdBy"`
	Permissions permission.Permissions `json:"permissions"`
}

func (p *Page) Creator() string                { return p.CreatedBy }
func (p *Page) Access() permission.Permissions { return p.Permissions }

func newPage(name, creatorID string, settings permission.Settings) *Page {
	return &Page{
		ID:          uuid.NewString(),
		Name:        name,
		Language:    DefaultLanguage,
		CreatedBy:   creatorID,
		Permissions: permission.ForNewPage(settings),
	}
}

func (p *Page) clone() Page {
	c := *p
	c.Permissions = p.Permissions.Clone()
	return c
}

// pageName trims and truncates a requested name. ok is false when nothing usable is left.
func pageName(requested string) (string, bool) {
	name := strings.TrimSpace(requested)
	if name == "" {
		return "", false
	}
	if utf8.RuneCountInString(name) > MaxPageNameLength {
		name = string([]rune(name)[:MaxPageNameLength])
	}
	return name, true
}

func defaultPageName(index int) string {
	return fmt.Sprintf("Page %d", index)
}

// apply writes the present fields of u into p. The name must already be normalized.
func (p *Page) apply(u protocol.PageUpdates) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Language != nil {
		p.Language = *u.Language
	}
	if u.Code != nil {
		p.Code = *u.Code
	}
	if u.Stdin != nil {
		p.Stdin = *u.Stdin
	}
	if u.Output != nil {
		p.Output = *u.Output
	}
}
