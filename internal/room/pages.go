package room

import (
	"encoding/json"
	"strings"

	"github.com/manpreetbhatti/coderoom/backend/internal/permission"
	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

// lockMember returns the room locked, provided actorID is one of its members.
func (g *Registry) lockMember(roomID, actorID string) (*Room, error) {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return nil, err
	}
	if !r.isMember(actorID) {
		r.mu.Unlock()
		return nil, forbidden("You are not a member of this room.")
	}
	return r, nil
}

// AddPage appends a page created by actorID and returns it.
func (g *Registry) AddPage(roomID, actorID, requestedName string) (Page, error) {
	r, err := g.lockMember(roomID, actorID)
	if err != nil {
		return Page{}, err
	}
	defer r.mu.Unlock()

	if !permission.CanCreatePage(r.settings, actorID, r.owner) {
		return Page{}, forbidden("Only the room owner can create pages right now.")
	}

	name, ok := pageName(requestedName)
	if !ok {
		name = defaultPageName(len(r.pages) + 1)
	}
	page := newPage(name, actorID, r.settings)
	r.pages = append(r.pages, page)

	if r.settings.DefaultEdit == permission.EditCreator {
		r.backup[page.ID] = page.Permissions.Clone()
	}

	g.relay.Publish(roomID, protocol.EventPagesUpdate, r.pageList(), "")
	return page.clone(), nil
}

// ClosePage removes a page. The last page of a room can never be closed.
func (g *Registry) ClosePage(roomID, actorID, pageID string) error {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if len(r.pages) <= 1 {
		return invariant("At least one page must remain in the room.")
	}
	if !r.isMember(actorID) {
		return forbidden("You are not a member of this room.")
	}
	page, idx := r.findPage(pageID)
	if page == nil {
		return notFound("Page not found.")
	}
	if !permission.CanManagePage(page, actorID, r.owner) {
		return forbidden("Only the room owner or page creator can close this page.")
	}

	r.pages = append(r.pages[:idx], r.pages[idx+1:]...)
	delete(r.backup, pageID)

	g.relay.Publish(roomID, protocol.EventPagesUpdate, r.pageList(), "")
	return nil
}

// ApplyContentChange writes page fields and relays the delta to the other sessions.
func (g *Registry) ApplyContentChange(roomID, actorID, pageID string, updates protocol.PageUpdates) error {
	r, err := g.lockMember(roomID, actorID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	page, _ := r.findPage(pageID)
	if page == nil {
		return notFound("Page not found.")
	}
	if !permission.CanEditPage(page, actorID, r.owner) {
		return forbidden("You do not have edit access for this page.")
	}
	if updates.Empty() {
		return validation("No editable fields in update.")
	}
	if updates.Name != nil {
		if !permission.CanManagePage(page, actorID, r.owner) {
			return forbidden("Only the room owner or page creator can rename this page.")
		}
		name, ok := pageName(*updates.Name)
		if !ok {
			return validation("Page name cannot be empty.")
		}
		updates.Name = &name
	}
	if updates.Language != nil && strings.TrimSpace(*updates.Language) == "" {
		return validation("Language cannot be empty.")
	}

	page.apply(updates)
	g.relay.Publish(roomID, protocol.EventContentUpdate, protocol.ContentUpdate{
		PageID:  pageID,
		UserID:  actorID,
		Updates: updates,
	}, actorID)
	return nil
}

// RelayEditOp forwards an opaque edit delta to the other sessions. Deltas are
// not merged or reordered; concurrent overlapping edits may diverge between
// clients. It reports whether the delta was relayed.
func (g *Registry) RelayEditOp(roomID, actorID, pageID string, rng json.RawMessage, text string) bool {
	r, err := g.lockMember(roomID, actorID)
	if err != nil {
		return false
	}
	defer r.mu.Unlock()

	page, _ := r.findPage(pageID)
	if page == nil || !permission.CanEditPage(page, actorID, r.owner) {
		return false
	}

	g.relay.Publish(roomID, protocol.EventEditorOp, protocol.EditorOp{
		RoomID: roomID,
		PageID: pageID,
		UserID: actorID,
		Range:  rng,
		Text:   text,
	}, actorID)
	return true
}

// UpdatePagePermissions stores a sanitized permission set for the page.
func (g *Registry) UpdatePagePermissions(roomID, actorID, pageID string, requested permission.Permissions) (permission.Permissions, error) {
	r, err := g.lockMember(roomID, actorID)
	if err != nil {
		return permission.Permissions{}, err
	}
	defer r.mu.Unlock()

	page, _ := r.findPage(pageID)
	if page == nil {
		return permission.Permissions{}, notFound("Page not found.")
	}
	if !permission.CanManagePage(page, actorID, r.owner) {
		return permission.Permissions{}, forbidden("You do not have permission to manage this page.")
	}

	page.Permissions = permission.Sanitize(requested, page.Permissions.Mode, &permission.Scope{
		Participants: r.participantSet(),
		OwnerID:      r.owner,
		CreatorID:    page.CreatedBy,
	})
	if r.settings.DefaultEdit == permission.EditCreator {
		r.backup[page.ID] = page.Permissions.Clone()
	}

	g.relay.Publish(roomID, protocol.EventPagesUpdate, r.pageList(), "")
	return page.Permissions.Clone(), nil
}

// ApplyRoomSettings replaces the room settings. Switching defaultEdit to
// everyone saves every page's permissions and opens all pages; switching back
// to creator restores them from the saved copy, then from clientSnapshot,
// else leaves the page creator-only.
func (g *Registry) ApplyRoomSettings(roomID, actorID string, requested permission.Settings, clientSnapshot map[string]permission.Permissions) (permission.Settings, error) {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return permission.Settings{}, err
	}
	defer r.mu.Unlock()

	if actorID == "" || actorID != r.owner {
		return permission.Settings{}, forbidden("Only the room owner can update room settings.")
	}

	next := permission.SanitizeSettings(requested)
	prev := r.settings
	r.settings = next

	if prev.DefaultEdit != next.DefaultEdit {
		if next.DefaultEdit == permission.EditEveryone {
			g.openAllPages(r)
		} else {
			g.restorePagePermissions(r, clientSnapshot)
		}
		g.relay.Publish(roomID, protocol.EventPagesUpdate, r.pageList(), "")
	}

	g.relay.Publish(roomID, protocol.EventRoomSettingsUpdate, next, "")
	return next, nil
}

func (g *Registry) openAllPages(r *Room) {
	snapshot := make(map[string]permission.Permissions, len(r.pages))
	for _, p := range r.pages {
		snapshot[p.ID] = permission.Sanitize(p.Permissions.Clone(), permission.ModeSelected, nil)
		p.Permissions = permission.Permissions{Mode: permission.ModeEveryone, Editors: []string{}}
	}
	r.backup = snapshot
}

func (g *Registry) restorePagePermissions(r *Room, clientSnapshot map[string]permission.Permissions) {
	for _, p := range r.pages {
		saved, ok := r.backup[p.ID]
		if !ok {
			saved, ok = clientSnapshot[p.ID]
			if ok {
				saved = permission.Sanitize(saved.Clone(), permission.ModeSelected, nil)
				r.backup[p.ID] = saved
			}
		}
		if ok {
			p.Permissions = saved.Clone()
			continue
		}
		p.Permissions = permission.Permissions{Mode: permission.ModeSelected, Editors: []string{}}
	}
}
