package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dateloop/backend/internal/auth"
	"github.com/dateloop/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:        uuid.NewString(),
		Email:     "alice@example.com",
		Password:  "secret-hash",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{
		ID:        uuid.NewString(),
		Email:     user.Email,
		Password:  "another-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}

	if fetched.ID != user.ID || fetched.Email != user.Email || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	updated := user
	updated.Email = "updated@example.com"
	updated.Password = "rotated-hash"
	updated.UpdatedAt = time.Now().UTC().Add(time.Minute)

	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("update user: %v", err)
	}

	fetched, err = repo.FindByEmail(ctx, updated.Email)
	if err != nil {
		t.Fatalf("find by updated email: %v", err)
	}

	if fetched.Email != updated.Email || fetched.Password != updated.Password {
		t.Fatalf("expected updated fields to persist, got %+v", fetched)
	}

	missing := models.User{
		ID:        uuid.NewString(),
		Email:     "missing@example.com",
		Password:  "hash",
		UpdatedAt: time.Now().UTC(),
	}

	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestPostgresSessionStore_SaveFindDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "session@example.com")
	store := NewPostgresSessionStore(testPool)

	session := auth.Session{
		RefreshToken: "refresh-token",
		UserID:       user.ID,
		ExpiresAt:    time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	found, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if found.UserID != user.ID || !timesClose(found.ExpiresAt, session.ExpiresAt, time.Millisecond) {
		t.Fatalf("unexpected session: %+v", found)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected a consumed token to be deleted only once, got %v", err)
	}
}

func TestPostgresSessionStore_SavePrunesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "prune@example.com")
	other := createTestUser(t, NewPostgresUserRepository(testPool), "keep@example.com")
	store := NewPostgresSessionStore(testPool)

	expired := time.Now().UTC().Add(-time.Hour)
	for _, s := range []auth.Session{
		{RefreshToken: "stale", UserID: user.ID, ExpiresAt: expired},
		{RefreshToken: "other-stale", UserID: other.ID, ExpiresAt: expired},
	} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save session: %v", err)
		}
	}

	// The stale session is still findable so the manager can report expiry.
	if _, err := store.Find(ctx, "stale"); err != nil {
		t.Fatalf("find expired session: %v", err)
	}

	fresh := auth.Session{RefreshToken: "fresh", UserID: user.ID, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if _, err := store.Find(ctx, "stale"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be pruned, got %v", err)
	}
	if _, err := store.Find(ctx, "other-stale"); err != nil {
		t.Fatalf("pruning must be scoped to the saving user: %v", err)
	}
	if err := store.Save(ctx, fresh); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected reused refresh token to conflict, got %v", err)
	}
}

func TestPostgresFriendRepository_ActivePairIsUnique(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice")
	bob := createTestProfile(t, "bob")
	repo := NewPostgresFriendRepository(testPool)

	edge := models.FriendEdge{
		ID:        uuid.NewString(),
		UserID:    alice.ID,
		FriendID:  bob.ID,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.InsertEdge(ctx, edge); err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	reverse := models.FriendEdge{
		ID:        uuid.NewString(),
		UserID:    bob.ID,
		FriendID:  alice.ID,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.InsertEdge(ctx, reverse); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for reverse pending edge, got %v", err)
	}

	missing := models.FriendEdge{
		ID:        uuid.NewString(),
		UserID:    alice.ID,
		FriendID:  uuid.NewString(),
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.InsertEdge(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown friend, got %v", err)
	}
}

func TestPostgresFriendRepository_ResolveAndList(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice")
	bob := createTestProfile(t, "bob")
	carol := createTestProfile(t, "carol")
	repo := NewPostgresFriendRepository(testPool)

	accepted := models.FriendEdge{ID: uuid.NewString(), UserID: alice.ID, FriendID: bob.ID, Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	pending := models.FriendEdge{ID: uuid.NewString(), UserID: carol.ID, FriendID: alice.ID, Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	for _, edge := range []models.FriendEdge{accepted, pending} {
		if err := repo.InsertEdge(ctx, edge); err != nil {
			t.Fatalf("insert edge: %v", err)
		}
	}

	respondedAt := time.Now().UTC()
	resolved, err := repo.ResolveEdge(ctx, accepted.ID, models.StatusAccepted, respondedAt)
	if err != nil {
		t.Fatalf("resolve edge: %v", err)
	}
	if resolved.Status != models.StatusAccepted || resolved.RespondedAt == nil || !timesClose(*resolved.RespondedAt, respondedAt, time.Millisecond) {
		t.Fatalf("unexpected resolved edge: %+v", resolved)
	}

	if _, err := repo.ResolveEdge(ctx, accepted.ID, models.StatusRejected, time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound resolving a resolved edge, got %v", err)
	}

	friends, err := repo.EdgesForUser(ctx, alice.ID, models.StatusAccepted)
	if err != nil {
		t.Fatalf("edges for user: %v", err)
	}
	if len(friends) != 1 || friends[0].ID != accepted.ID {
		t.Fatalf("expected the accepted edge only, got %+v", friends)
	}

	between, err := repo.EdgesBetween(ctx, alice.ID, carol.ID)
	if err != nil {
		t.Fatalf("edges between: %v", err)
	}
	if len(between) != 1 || between[0].ID != pending.ID {
		t.Fatalf("expected the pending edge, got %+v", between)
	}

	profiles, err := repo.ProfilesByID(ctx, []string{carol.ID, bob.ID})
	if err != nil {
		t.Fatalf("profiles by id: %v", err)
	}
	if len(profiles) != 2 || profiles[0].Username != "bob" || profiles[1].Username != "carol" {
		t.Fatalf("expected profiles ordered by username, got %+v", profiles)
	}

	if err := repo.DeleteEdges(ctx, []string{accepted.ID, pending.ID}); err != nil {
		t.Fatalf("delete edges: %v", err)
	}
	if _, err := repo.FindEdge(ctx, accepted.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresFeedRepository_PostsLikesAndComments(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice")
	bob := createTestProfile(t, "bob")
	repo := NewPostgresFeedRepository(testPool)

	base := time.Now().UTC().Truncate(time.Millisecond)
	older := newTestPost(alice.ID, base.Add(-time.Hour))
	newer := newTestPost(bob.ID, base)

	if err := repo.CreatePostWithDate(ctx, older.date, older.post); err != nil {
		t.Fatalf("create post with date: %v", err)
	}
	if err := repo.InsertDate(ctx, newer.date); err != nil {
		t.Fatalf("insert date: %v", err)
	}
	if err := repo.InsertPost(ctx, newer.post); err != nil {
		t.Fatalf("insert post: %v", err)
	}

	orphan := newTestPost(alice.ID, base)
	if err := repo.InsertPost(ctx, orphan.post); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for post without date, got %v", err)
	}

	all, err := repo.ListPosts(ctx, "")
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(all) != 2 || all[0].ID != newer.post.ID || all[1].ID != older.post.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].Author.Username != "bob" || all[0].Date.Location != newer.date.Location {
		t.Fatalf("expected joined author and date, got %+v", all[0])
	}

	mine, err := repo.ListPosts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list author posts: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != older.post.ID {
		t.Fatalf("expected alice's post only, got %+v", mine)
	}

	like := models.Like{PostID: older.post.ID, UserID: bob.ID, CreatedAt: base}
	for i := 0; i < 2; i++ {
		if err := repo.InsertLike(ctx, like); err != nil {
			t.Fatalf("insert like attempt %d: %v", i+1, err)
		}
	}

	ids := []string{older.post.ID, newer.post.ID}
	counts, err := repo.CountLikes(ctx, ids)
	if err != nil {
		t.Fatalf("count likes: %v", err)
	}
	if counts[older.post.ID] != 1 || counts[newer.post.ID] != 0 {
		t.Fatalf("unexpected like counts: %+v", counts)
	}

	liked, err := repo.LikedPostIDs(ctx, bob.ID, ids)
	if err != nil {
		t.Fatalf("liked post ids: %v", err)
	}
	if !liked[older.post.ID] || liked[newer.post.ID] {
		t.Fatalf("unexpected liked set: %+v", liked)
	}

	if err := repo.DeleteLike(ctx, older.post.ID, bob.ID); err != nil {
		t.Fatalf("delete like: %v", err)
	}
	if err := repo.DeleteLike(ctx, older.post.ID, bob.ID); err != nil {
		t.Fatalf("delete missing like: %v", err)
	}

	first := models.Comment{ID: uuid.NewString(), PostID: older.post.ID, UserID: bob.ID, Content: "first", CreatedAt: base}
	second := models.Comment{ID: uuid.NewString(), PostID: older.post.ID, UserID: alice.ID, Content: "second", CreatedAt: base.Add(time.Second)}
	for _, comment := range []models.Comment{second, first} {
		if err := repo.InsertComment(ctx, comment); err != nil {
			t.Fatalf("insert comment: %v", err)
		}
	}

	comments, err := repo.ListComments(ctx, ids)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 || comments[0].ID != first.ID || comments[0].Author.Username != "bob" {
		t.Fatalf("expected comments oldest first with authors, got %+v", comments)
	}

	if err := repo.DeleteDate(ctx, newer.date.ID); err != nil {
		t.Fatalf("delete date: %v", err)
	}
	if err := repo.DeleteDate(ctx, newer.date.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting a missing date, got %v", err)
	}
}

func TestPostgresFeedRepository_CreatePostWithDateIsAtomic(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice")
	repo := NewPostgresFeedRepository(testPool)

	broken := newTestPost(alice.ID, time.Now().UTC())
	broken.post.UserID = uuid.NewString()

	if err := repo.CreatePostWithDate(ctx, broken.date, broken.post); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown author, got %v", err)
	}
	if err := repo.DeleteDate(ctx, broken.date.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the date to be rolled back, got %v", err)
	}
}

func TestPostgresDateRepository_InvitationsAndChallenges(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice")
	bob := createTestProfile(t, "bob")
	repo := NewPostgresDateRepository(testPool)

	base := time.Now().UTC().Truncate(time.Millisecond)
	later := models.DateInvitation{
		ID: uuid.NewString(), SenderID: alice.ID, ReceiverID: bob.ID, DateTime: base.Add(48 * time.Hour),
		Location: "Pier", Notes: "sunset", Status: models.StatusPending, CreatedAt: base,
	}
	sooner := later
	sooner.ID = uuid.NewString()
	sooner.DateTime = base.Add(24 * time.Hour)

	for _, invitation := range []models.DateInvitation{later, sooner} {
		if err := repo.InsertInvitation(ctx, invitation); err != nil {
			t.Fatalf("insert invitation: %v", err)
		}
	}

	inbox, err := repo.ListByReceiver(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list by receiver: %v", err)
	}
	if len(inbox) != 2 || inbox[0].ID != sooner.ID {
		t.Fatalf("expected soonest invitation first, got %+v", inbox)
	}

	sent, err := repo.ListBySender(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list by sender: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected 2 sent invitations, got %d", len(sent))
	}

	resolved, err := repo.ResolveInvitation(ctx, sooner.ID, models.StatusAccepted, base)
	if err != nil {
		t.Fatalf("resolve invitation: %v", err)
	}
	if resolved.Status != models.StatusAccepted || resolved.RespondedAt == nil {
		t.Fatalf("unexpected resolved invitation: %+v", resolved)
	}
	if _, err := repo.ResolveInvitation(ctx, sooner.ID, models.StatusRejected, base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound resolving twice, got %v", err)
	}
	if _, err := repo.FindInvitation(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	challenge := models.Challenge{ID: uuid.NewString(), DateID: sooner.ID, Title: "Find the orchids", CreatedAt: base}
	if err := repo.InsertChallenge(ctx, challenge); err != nil {
		t.Fatalf("insert challenge: %v", err)
	}

	orphan := models.Challenge{ID: uuid.NewString(), DateID: uuid.NewString(), Title: "Nowhere", CreatedAt: base}
	if err := repo.InsertChallenge(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown invitation, got %v", err)
	}

	toggled, err := repo.ToggleChallenge(ctx, challenge.ID)
	if err != nil {
		t.Fatalf("toggle challenge: %v", err)
	}
	if !toggled.IsCompleted {
		t.Fatal("expected challenge to be completed after first toggle")
	}
	toggled, err = repo.ToggleChallenge(ctx, challenge.ID)
	if err != nil {
		t.Fatalf("toggle challenge again: %v", err)
	}
	if toggled.IsCompleted {
		t.Fatal("expected challenge to be open after second toggle")
	}

	challenges, err := repo.ListChallenges(ctx, sooner.ID)
	if err != nil {
		t.Fatalf("list challenges: %v", err)
	}
	if len(challenges) != 1 || challenges[0].ID != challenge.ID {
		t.Fatalf("unexpected challenges: %+v", challenges)
	}
}

func TestPostgresMessageRepository_ThreadAndUnread(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice")
	bob := createTestProfile(t, "bob")
	carol := createTestProfile(t, "carol")
	repo := NewPostgresMessageRepository(testPool)

	base := time.Now().UTC().Truncate(time.Millisecond)
	msgs := []models.Message{
		{ID: uuid.NewString(), SenderID: bob.ID, ReceiverID: alice.ID, Content: "hi", CreatedAt: base},
		{ID: uuid.NewString(), SenderID: alice.ID, ReceiverID: bob.ID, Content: "hey", CreatedAt: base.Add(time.Second)},
		{ID: uuid.NewString(), SenderID: bob.ID, ReceiverID: alice.ID, Content: "dinner?", CreatedAt: base.Add(2 * time.Second)},
		{ID: uuid.NewString(), SenderID: carol.ID, ReceiverID: alice.ID, Content: "yo", CreatedAt: base},
	}
	for _, msg := range msgs {
		if err := repo.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	thread, err := repo.ListThread(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("list thread: %v", err)
	}
	if len(thread) != 3 || thread[0].Content != "hi" || thread[2].Content != "dinner?" {
		t.Fatalf("unexpected thread: %+v", thread)
	}

	unread, err := repo.CountUnread(ctx, alice.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 3 {
		t.Fatalf("expected 3 unread got %d", unread)
	}

	marked, err := repo.MarkRead(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 messages marked got %d", marked)
	}
	if marked, err = repo.MarkRead(ctx, alice.ID, bob.ID); err != nil || marked != 0 {
		t.Fatalf("expected second mark to change nothing, got %d, %v", marked, err)
	}

	unread, err = repo.CountUnread(ctx, alice.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected 1 unread got %d", unread)
	}
}

func TestPostgresProfileRepository_UpsertSearchAndAvatar(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice")
	createTestProfile(t, "alicia")
	createTestProfile(t, "al_x")
	createTestProfile(t, "bob")
	repo := NewPostgresProfileRepository(testPool)

	updated := alice
	updated.Bio = "hello"
	updated.UpdatedAt = time.Now().UTC().Add(time.Minute)
	saved, err := repo.UpsertProfile(ctx, updated)
	if err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	if saved.Bio != "hello" || !timesClose(saved.CreatedAt, alice.CreatedAt, time.Millisecond) {
		t.Fatalf("expected bio update with original creation time, got %+v", saved)
	}

	taken := alice
	taken.ID = createTestUser(t, NewPostgresUserRepository(testPool), "other@example.com").ID
	if _, err := repo.UpsertProfile(ctx, taken); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for taken username, got %v", err)
	}

	results, err := repo.SearchProfiles(ctx, "ali", alice.ID, 10)
	if err != nil {
		t.Fatalf("search profiles: %v", err)
	}
	if len(results) != 1 || results[0].Username != "alicia" {
		t.Fatalf("expected only alicia, got %+v", results)
	}

	results, err = repo.SearchProfiles(ctx, "al_", "", 10)
	if err != nil {
		t.Fatalf("search profiles: %v", err)
	}
	if len(results) != 1 || results[0].Username != "al_x" {
		t.Fatalf("expected underscore to match literally, got %+v", results)
	}

	withAvatar, err := repo.SetAvatarURL(ctx, alice.ID, "https://cdn.example.com/a.png", time.Now().UTC())
	if err != nil {
		t.Fatalf("set avatar: %v", err)
	}
	if withAvatar.AvatarURL == nil || *withAvatar.AvatarURL != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected avatar: %+v", withAvatar.AvatarURL)
	}
	if _, err := repo.SetAvatarURL(ctx, uuid.NewString(), "x", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing profile, got %v", err)
	}
}

type testPost struct {
	date models.Date
	post models.Post
}

func newTestPost(authorID string, createdAt time.Time) testPost {
	date := models.Date{
		ID:        uuid.NewString(),
		DateTime:  createdAt.Add(72 * time.Hour),
		Location:  "Harbor " + createdAt.Format(time.RFC3339Nano),
		SenderID:  authorID,
		CreatedAt: createdAt,
	}
	return testPost{
		date: date,
		post: models.Post{
			ID:          uuid.NewString(),
			UserID:      authorID,
			DateID:      date.ID,
			Description: "tacos",
			CreatedAt:   createdAt,
		},
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE messages, challenges, date_invitations, comments, likes, posts, dates, friends, profiles, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestProfile(t *testing.T, username string) models.Profile {
	t.Helper()
	user := createTestUser(t, NewPostgresUserRepository(testPool), username+"@example.com")
	now := time.Now().UTC().Truncate(time.Millisecond)
	profile, err := NewPostgresProfileRepository(testPool).UpsertProfile(context.Background(), models.Profile{
		ID:        user.ID,
		Username:  username,
		FullName:  username,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create test profile: %v", err)
	}
	return profile
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
