package services

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/folders"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/shares"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// txConnector backs a *sql.DB that supports transactions and nothing else.
// Begin snapshots the memStore; Rollback, or a failing Commit, restores it,
// so a rolled back transaction leaves no trace in the fake repositories.
type txConnector struct{ s *memStore }

func (c txConnector) Connect(context.Context) (driver.Conn, error) { return txConn(c), nil }
func (c txConnector) Driver() driver.Driver                        { return txDriver(c) }

type txDriver struct{ s *memStore }

func (d txDriver) Open(string) (driver.Conn, error) { return txConn(d), nil }

type txConn struct{ s *memStore }

func (c txConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements are served by the fake repositories")
}

func (c txConn) Close() error { return nil }

func (c txConn) Begin() (driver.Tx, error) {
	c.s.begin()
	return txHandle(c), nil
}

type txHandle struct{ s *memStore }

func (t txHandle) Commit() error { return t.s.commit() }

func (t txHandle) Rollback() error {
	t.s.rollback()
	return nil
}

func newTxDB(t *testing.T, s *memStore) *sql.DB {
	t.Helper()
	db := sql.OpenDB(txConnector{s: s})
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// memStore is an in-memory metadata store shared by the fake repositories.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*models.User
	folders map[int64]*models.Folder
	files   map[int64]*models.File
	shares  map[string]*models.Share

	// locks records "folder:<id>" and "file:<id>" in lock order.
	locks []string
	// failOn makes the named repository method, or "commit", return the
	// error. With failAt set for the same name only that call fails.
	failOn map[string]error
	failAt map[string]int
	calls  map[string]int

	// snap holds the state at Begin of the open transaction.
	snap *memStore
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[int64]*models.User{},
		folders: map[int64]*models.Folder{},
		files:   map[int64]*models.File{},
		shares:  map[string]*models.Share{},
		failOn:  map[string]error{},
		failAt:  map[string]int{},
		calls:   map[string]int{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) fail(op string) error {
	s.calls[op]++
	if n, ok := s.failAt[op]; ok && s.calls[op] != n {
		return nil
	}
	return s.failOn[op]
}

func (s *memStore) copyState() *memStore {
	c := &memStore{
		users:   make(map[int64]*models.User, len(s.users)),
		folders: make(map[int64]*models.Folder, len(s.folders)),
		files:   make(map[int64]*models.File, len(s.files)),
		shares:  make(map[string]*models.Share, len(s.shares)),
	}
	for id, u := range s.users {
		v := *u
		c.users[id] = &v
	}
	for id, f := range s.folders {
		v := *f
		c.folders[id] = &v
	}
	for id, f := range s.files {
		c.files[id] = copyFile(f)
	}
	for token, sh := range s.shares {
		v := *sh
		c.shares[token] = &v
	}
	return c
}

func (s *memStore) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = s.copyState()
}

func (s *memStore) restore() {
	if s.snap == nil {
		return
	}
	s.users, s.folders, s.files, s.shares = s.snap.users, s.snap.folders, s.snap.files, s.snap.shares
	s.snap = nil
}

func (s *memStore) commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("commit"); err != nil {
		s.restore()
		return err
	}
	s.snap = nil
	return nil
}

func (s *memStore) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restore()
}

func copyFile(f *models.File) *models.File {
	c := *f
	if f.FolderID != nil {
		id := *f.FolderID
		c.FolderID = &id
	}
	return &c
}

func (s *memStore) addUser(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.users[id] = &models.User{ID: id, UserName: name}
	return id
}

func (s *memStore) addFolder(owner int64, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.folders[id] = &models.Folder{ID: id, OwnerID: owner, Name: name, CreatedAt: time.Now()}
	return id
}

func (s *memStore) addFile(owner int64, folder *int64, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.files[id] = &models.File{ID: id, OwnerID: owner, FolderID: folder, Name: name, StorageKey: fmt.Sprintf("key-%d", id)}
	return id
}

func (s *memStore) file(id int64) *models.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		return copyFile(f)
	}
	return nil
}

func (s *memStore) memberIDs(folderID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, f := range s.files {
		if f.InFolder(folderID) {
			ids = append(ids, f.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *memStore) lockLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.locks...)
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrAlreadyExists
		}
	}
	u.ID = r.s.id()
	u.CreatedAt = time.Now()
	c := *u
	r.s.users[u.ID] = &c
	return u, nil
}

func (r memUsers) GetByUsername(ctx context.Context, name string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.UserName == name {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, common.ErrNotFound
}

type memFolders struct{ s *memStore }

func (r memFolders) Create(ctx context.Context, f *models.Folder) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("folders.Create"); err != nil {
		return nil, err
	}
	f.ID = r.s.id()
	f.CreatedAt = time.Now()
	c := *f
	r.s.folders[f.ID] = &c
	return f, nil
}

func (r memFolders) get(id int64) (*models.Folder, error) {
	if f, ok := r.s.folders[id]; ok {
		c := *f
		return &c, nil
	}
	return nil, common.ErrNotFound
}

func (r memFolders) Get(ctx context.Context, id int64) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r memFolders) Lock(ctx context.Context, id int64) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.locks = append(r.s.locks, fmt.Sprintf("folder:%d", id))
	return r.get(id)
}

func (r memFolders) ListByOwner(ctx context.Context, owner int64) ([]*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Folder
	for _, f := range r.s.folders {
		if f.OwnerID == owner {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memFolders) Rename(ctx context.Context, id int64, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.folders[id]
	if !ok {
		return common.ErrNotFound
	}
	f.Name = name
	return nil
}

// Delete mirrors the schema: members block the delete, shares cascade.
func (r memFolders) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("folders.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.folders[id]; !ok {
		return common.ErrNotFound
	}
	for _, f := range r.s.files {
		if f.InFolder(id) {
			return errors.New("db error: files_folder_id_owner_id_fkey")
		}
	}
	delete(r.s.folders, id)
	for token, sh := range r.s.shares {
		if sh.FolderID == id {
			delete(r.s.shares, token)
		}
	}
	return nil
}

type memFiles struct{ s *memStore }

func (r memFiles) Create(ctx context.Context, f *models.File) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("files.Create"); err != nil {
		return nil, err
	}
	f.ID = r.s.id()
	f.CreatedAt = time.Now()
	r.s.files[f.ID] = copyFile(f)
	return f, nil
}

func (r memFiles) get(id int64) (*models.File, error) {
	if f, ok := r.s.files[id]; ok {
		return copyFile(f), nil
	}
	return nil, common.ErrNotFound
}

func (r memFiles) Get(ctx context.Context, id int64) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r memFiles) Lock(ctx context.Context, id int64) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.locks = append(r.s.locks, fmt.Sprintf("file:%d", id))
	return r.get(id)
}

func (r memFiles) list(match func(*models.File) bool) []*models.File {
	var out []*models.File
	for _, f := range r.s.files {
		if match(f) {
			out = append(out, copyFile(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memFiles) ListByFolder(ctx context.Context, folderID int64) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(f *models.File) bool { return f.InFolder(folderID) }), nil
}

func (r memFiles) ListLoose(ctx context.Context, owner int64) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(f *models.File) bool { return f.OwnerID == owner && f.FolderID == nil }), nil
}

func (r memFiles) SetFolder(ctx context.Context, id int64, folderID *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("files.SetFolder"); err != nil {
		return err
	}
	f, ok := r.s.files[id]
	if !ok {
		return common.ErrNotFound
	}
	if folderID == nil {
		f.FolderID = nil
	} else {
		v := *folderID
		f.FolderID = &v
	}
	return nil
}

func (r memFiles) Rename(ctx context.Context, id int64, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[id]
	if !ok {
		return common.ErrNotFound
	}
	f.Name = name
	return nil
}

func (r memFiles) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("files.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.files[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.files, id)
	return nil
}

func (r memFiles) DetachFolder(ctx context.Context, folderID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, f := range r.s.files {
		if f.InFolder(folderID) {
			f.FolderID = nil
			n++
		}
	}
	return n, nil
}

func (r memFiles) CountByFolder(ctx context.Context, folderID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.list(func(f *models.File) bool { return f.InFolder(folderID) }))), nil
}

type memShares struct{ s *memStore }

func (r memShares) Create(ctx context.Context, sh *models.Share) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sh.CreatedAt = time.Now()
	c := *sh
	r.s.shares[sh.Token] = &c
	return sh, nil
}

func (r memShares) Get(ctx context.Context, token string) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sh, ok := r.s.shares[token]; ok {
		c := *sh
		return &c, nil
	}
	return nil, common.ErrNotFound
}

func (r memShares) ListByFolder(ctx context.Context, folderID int64) ([]*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Share
	for _, sh := range r.s.shares {
		if sh.FolderID == folderID {
			c := *sh
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (r memShares) Delete(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shares[token]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.shares, token)
	return nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return memUsers{m.s} }
func (m *fakeRepoManager) Folders(dbx.DBTX) folders.Repository          { return memFolders{m.s} }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return memFiles{m.s} }
func (m *fakeRepoManager) Shares(dbx.DBTX) shares.Repository            { return memShares{m.s} }

// memEngine is an in-memory storage.Engine.
type memEngine struct {
	mu        sync.Mutex
	objects   map[string][]byte
	storeErr  error
	removeErr error
	stores    int
	removes   int
}

func newMemEngine() *memEngine {
	return &memEngine{objects: map[string][]byte{}}
}

func (e *memEngine) Name() string          { return "mem" }
func (e *memEngine) URL(key string) string { return "http://objects/" + key }

func (e *memEngine) Store(ctx context.Context, req storage.StoreRequest) (*storage.Descriptor, error) {
	e.mu.Lock()
	e.stores++
	storeErr := e.storeErr
	e.mu.Unlock()
	if storeErr != nil {
		return nil, storeErr
	}

	tracker := storage.NewProgressTracker(ctx, req.Body, req.OnProgress)
	b, err := io.ReadAll(tracker)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStreamError, err)
	}

	key, ext := storage.NewKey(req.DeclaredName)
	e.mu.Lock()
	e.objects[key] = b
	e.mu.Unlock()
	return &storage.Descriptor{Key: key, PublicURL: e.URL(key), Extension: ext, Size: tracker.Peak()}, nil
}

func (e *memEngine) Remove(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removes++
	if e.removeErr != nil {
		return e.removeErr
	}
	delete(e.objects, key)
	return nil
}

func (e *memEngine) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (e *memEngine) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (e *memEngine) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []storage.ObjectInfo
	for k, b := range e.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (e *memEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.objects)
}

// put seeds an object under the key the store assigned to a file row.
func (e *memEngine) put(key string, b []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.objects[key] = b
}

// harness wires every service over one memStore and memEngine.
type harness struct {
	db      *sql.DB
	store   *memStore
	engine  *memEngine
	files   *FileService
	folders *FolderService
	shares  *ShareService
	upload  *UploadService
	users   *UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	db := newTxDB(t, store)
	engine := newMemEngine()
	rm := &fakeRepoManager{s: store}

	fs := NewFileService(db, rm, engine, nil)
	return &harness{
		db:      db,
		store:   store,
		engine:  engine,
		files:   fs,
		folders: NewFolderService(db, rm, fs, nil),
		shares:  NewShareService(db, rm, nil, nil),
		upload:  NewUploadService(engine, fs, nil, time.Second),
		users:   NewUserService(db, rm, &config.Config{
			SecretKey:                   "test-secret",
			AccessTokenValidityDuration: time.Hour,
		}),
	}
}

func ptr(v int64) *int64 { return &v }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
