package app

import (
	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/dispatch"
)

// A command either fails validation here, synchronously, or is sent to the
// backend and reported later through Handle. Validation errors also become
// the state's message.

func (c *Controller) check(what string, err error) error {
	if err != nil {
		c.err = err
		c.message = what + ": " + err.Error()
	}
	return err
}

// SignIn signs in with email and password.
func (c *Controller) SignIn(email, password string) error {
	return c.check("sign in", c.commands.SignIn(email, password))
}

// SignUp registers a new account and signs it in.
func (c *Controller) SignUp(email, password string) error {
	return c.check("sign up", c.commands.SignUp(email, password))
}

// Resume restores the persisted session, if there is one.
func (c *Controller) Resume() error {
	return c.commands.SignInWithProvider(backend.ProviderSession)
}

// SignOut ends the session. The list empties once the backend confirms.
func (c *Controller) SignOut() error {
	return c.check("sign out", c.commands.SignOut(c.holder.Current()))
}

// SetDraft records the text of the add input.
func (c *Controller) SetDraft(text string) { c.draft = text }

// SubmitDraft adds the draft as a new item. The draft is cleared when the
// backend confirms the write, not before.
func (c *Controller) SubmitDraft() error {
	return c.Add(c.draft)
}

// Add creates an item with title.
func (c *Controller) Add(title string) error {
	return c.check("add", c.commands.Add(c.holder.Current(), title))
}

// BeginEdit puts the item with id into edit mode, discarding any other edit.
func (c *Controller) BeginEdit(id string) error {
	it, ok := c.State().Item(id)
	if !ok {
		return c.check("edit", dispatch.ErrMissingItem)
	}
	c.edit.Begin(it.ID, it.Title)
	return nil
}

// UpdateEdit changes the working title.
func (c *Controller) UpdateEdit(text string) { c.edit.Update(text) }

// CancelEdit leaves edit mode without saving.
func (c *Controller) CancelEdit() { c.edit.Cancel() }

// SaveEdit writes the working title. The buffer stays until the write is
// confirmed so a failed save can be retried.
func (c *Controller) SaveEdit() error {
	if !c.edit.Active() {
		return c.check("save", dispatch.ErrMissingItem)
	}
	return c.Save(c.edit.Target(), c.edit.Text())
}

// Save writes title to the item with id.
func (c *Controller) Save(id, title string) error {
	return c.check("save", c.commands.Save(c.holder.Current(), id, title))
}

// Delete removes the item with id.
func (c *Controller) Delete(id string) error {
	return c.check("delete", c.commands.Delete(c.holder.Current(), id))
}

// Toggle flips the completed flag of the item with id.
func (c *Controller) Toggle(id string) error {
	it, ok := c.State().Item(id)
	if !ok {
		return c.check("toggle", dispatch.ErrMissingItem)
	}
	return c.check("toggle", c.commands.Toggle(c.holder.Current(), it.ID, it.Completed))
}

// Refresh re-opens the live list, e.g. after a subscription failure.
func (c *Controller) Refresh() error {
	return c.check("refresh", c.list.Refresh())
}
