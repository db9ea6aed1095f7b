package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
)

const (
	validToken = "valid-token"
	testUserID = int64(42)
)

type fakeUsers struct {
	registerErr error
}

func (f *fakeUsers) Register(ctx context.Context, username, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: 1, UserName: username}, nil
}

func (f *fakeUsers) Login(ctx context.Context, username, password string) (string, error) {
	if password != "password1" {
		return "", common.ErrUnauthorized
	}
	return validToken, nil
}

func (f *fakeUsers) Authenticate(token string) (int64, error) {
	if token != validToken {
		return 0, common.ErrInvalidToken
	}
	return testUserID, nil
}

type fakeUploads struct {
	fn   func(req *services.UploadRequest) (*models.File, error)
	got  *services.UploadRequest
	body []byte
}

func (f *fakeUploads) Upload(ctx context.Context, req *services.UploadRequest, actor int64) (*models.File, error) {
	f.got = req
	return f.fn(req)
}

type fakeFiles struct {
	err     error
	actor   int64
	movedTo *int64
	url     string
	ttl     time.Duration
}

func (f *fakeFiles) file(id int64) (*models.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.File{ID: id, OwnerID: f.actor, Name: "a.txt"}, nil
}

func (f *fakeFiles) Get(ctx context.Context, id, actor int64) (*models.File, error) {
	f.actor = actor
	return f.file(id)
}

func (f *fakeFiles) ListLoose(ctx context.Context, actor int64) ([]*models.File, error) {
	f.actor = actor
	return nil, f.err
}

func (f *fakeFiles) Rename(ctx context.Context, id int64, newName string, actor int64) (*models.File, error) {
	f.actor = actor
	file, err := f.file(id)
	if err != nil {
		return nil, err
	}
	file.Name = newName
	return file, nil
}

func (f *fakeFiles) Move(ctx context.Context, id int64, newFolderID *int64, actor int64) (*models.File, error) {
	f.actor = actor
	f.movedTo = newFolderID
	file, err := f.file(id)
	if err != nil {
		return nil, err
	}
	file.FolderID = newFolderID
	return file, nil
}

func (f *fakeFiles) Delete(ctx context.Context, id, actor int64) error {
	f.actor = actor
	return f.err
}

func (f *fakeFiles) DownloadURL(ctx context.Context, id, actor int64, ttl time.Duration) (string, error) {
	f.ttl = ttl
	return f.url, f.err
}

type fakeFolders struct {
	err    error
	policy services.DeletePolicy
	add    []int64
	remove []int64
}

func (f *fakeFolders) Create(ctx context.Context, name string, actor int64) (*models.Folder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Folder{ID: 1, OwnerID: actor, Name: name}, nil
}

func (f *fakeFolders) Get(ctx context.Context, id, actor int64) (*models.FolderView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.FolderView{Folder: models.Folder{ID: id, OwnerID: actor, Name: "Taxes"}, Files: []*models.File{}}, nil
}

func (f *fakeFolders) List(ctx context.Context, actor int64) ([]*models.Folder, error) {
	return nil, f.err
}

func (f *fakeFolders) Rename(ctx context.Context, id int64, name string, actor int64) (*models.Folder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Folder{ID: id, OwnerID: actor, Name: name}, nil
}

func (f *fakeFolders) UpdateMembership(ctx context.Context, folderID int64, add, remove []int64, actor int64) (*models.FolderView, error) {
	f.add, f.remove = add, remove
	return f.Get(ctx, folderID, actor)
}

func (f *fakeFolders) Delete(ctx context.Context, id, actor int64, policy services.DeletePolicy) error {
	f.policy = policy
	return f.err
}

type fakeShares struct {
	err  error
	days float64
}

func (f *fakeShares) Issue(ctx context.Context, folderID, actor int64, durationDays float64) (*models.Share, error) {
	f.days = durationDays
	if f.err != nil {
		return nil, f.err
	}
	return &models.Share{Token: "abc", FolderID: folderID, ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
}

func (f *fakeShares) Resolve(ctx context.Context, token string) (*models.SharedFolder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.SharedFolder{
		FolderView: models.FolderView{
			Folder: models.Folder{ID: 1, OwnerID: testUserID, Name: "Taxes"},
			Files: []*models.File{{
				ID:         5,
				OwnerID:    testUserID,
				Name:       "report.pdf",
				StorageKey: "0b6c7a7e-5d0e-4c1f-9a55-2f1c3e6d8a90.pdf",
				URL:        "/files/0b6c7a7e-5d0e-4c1f-9a55-2f1c3e6d8a90.pdf",
			}},
		},
		ExpiresAt:  time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeShares) List(ctx context.Context, folderID, actor int64) ([]*models.Share, error) {
	return nil, f.err
}

func (f *fakeShares) Revoke(ctx context.Context, token string, actor int64) error {
	return f.err
}

type testAPI struct {
	users   *fakeUsers
	uploads *fakeUploads
	files   *fakeFiles
	folders *fakeFolders
	shares  *fakeShares
	opts    Options
}

func newTestAPI() *testAPI {
	a := &testAPI{
		users: &fakeUsers{},
		uploads: &fakeUploads{fn: func(req *services.UploadRequest) (*models.File, error) {
			return &models.File{ID: 1, Name: req.FileName}, nil
		}},
		files:   &fakeFiles{},
		folders: &fakeFolders{},
		shares:  &fakeShares{},
	}
	a.opts = Options{
		Users:   a.users,
		Uploads: a.uploads,
		Files:   a.files,
		Folders: a.folders,
		Shares:  a.shares,
	}
	return a
}
