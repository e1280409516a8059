package analyses

import "context"

type fakeChats struct {
	deleted int
	err     error
	users   []string
}

func (f *fakeChats) Clear(_ context.Context, userID string) (int, error) {
	f.users = append(f.users, userID)
	return f.deleted, f.err
}
