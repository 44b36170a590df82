package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/labelman/internal/model"
)

// --- モック定義 ---

type mockVerifier struct {
	verifyFn func(ctx context.Context, credential string) (*VerifiedClaims, error)
}

func (m *mockVerifier) Verify(ctx context.Context, credential string) (*VerifiedClaims, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, credential)
	}
	return nil, nil
}

type mockIssuer struct {
	issueFn func(sub string) (string, error)
}

func (m *mockIssuer) Issue(sub string) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(sub)
	}
	return "issued-token", nil
}

type mockUserRepo struct {
	findBySubFn     func(ctx context.Context, sub string) (*model.User, error)
	findByIDFn      func(ctx context.Context, id string) (*model.User, error)
	createFn        func(ctx context.Context, user *model.User) error
	updateProfileFn func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindBySub(ctx context.Context, sub string) (*model.User, error) {
	if m.findBySubFn != nil {
		return m.findBySubFn(ctx, sub)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

// --- テスト ---

// 新規subjectのログインでユーザーが作成されトークンが返ることを検証
func TestService_Login_NewUser_CreatesAndIssuesToken(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			return &VerifiedClaims{
				Sub:   "sub-123",
				Email: "a@example.com",
			}, nil
		},
	}
	svc := NewService(verifier, &mockIssuer{}, repo)

	token, user, err := svc.Login(context.Background(), "valid-credential")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if token != "issued-token" {
		t.Errorf("token = %q, want %q", token, "issued-token")
	}
	if user == nil {
		t.Fatal("expected non-nil user")
	}
	if user.Sub != "sub-123" {
		t.Errorf("user.Sub = %q, want %q", user.Sub, "sub-123")
	}
	if user.Email != "a@example.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "a@example.com")
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if created.ID == "" {
		t.Error("expected generated user ID")
	}
}

// 同一subjectの再ログインでユーザーが重複作成されないことを検証（冪等性）
func TestService_Login_ExistingUser_DoesNotCreate(t *testing.T) {
	existing := &model.User{
		ID:        "user-1",
		Sub:       "sub-123",
		Email:     "a@example.com",
		CreatedAt: time.Now().Add(-time.Hour),
	}
	createCalled := false
	repo := &mockUserRepo{
		findBySubFn: func(_ context.Context, _ string) (*model.User, error) {
			return existing, nil
		},
		createFn: func(_ context.Context, _ *model.User) error {
			createCalled = true
			return nil
		},
	}
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			return &VerifiedClaims{Sub: "sub-123", Email: "a@example.com"}, nil
		},
	}
	svc := NewService(verifier, &mockIssuer{}, repo)

	_, user, err := svc.Login(context.Background(), "valid-credential")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if createCalled {
		t.Error("Create should not be called for existing user")
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}
}

// プロフィール項目に変更がある場合のみ更新されることを検証
func TestService_Login_ExistingUser_UpdatesChangedProfile(t *testing.T) {
	existing := &model.User{
		ID:    "user-1",
		Sub:   "sub-123",
		Email: "old@example.com",
	}
	updateCalled := false
	repo := &mockUserRepo{
		findBySubFn: func(_ context.Context, _ string) (*model.User, error) {
			return existing, nil
		},
		updateProfileFn: func(_ context.Context, user *model.User) error {
			updateCalled = true
			if user.Email != "new@example.com" {
				t.Errorf("updated email = %q, want %q", user.Email, "new@example.com")
			}
			return nil
		},
	}
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			return &VerifiedClaims{Sub: "sub-123", Email: "new@example.com"}, nil
		},
	}
	svc := NewService(verifier, &mockIssuer{}, repo)

	if _, _, err := svc.Login(context.Background(), "valid-credential"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !updateCalled {
		t.Error("expected UpdateProfile to be called")
	}
}

// クレームの空項目で既存プロフィールが消されないことを検証
func TestService_Login_EmptyClaimDoesNotClearProfile(t *testing.T) {
	existing := &model.User{
		ID:    "user-1",
		Sub:   "sub-123",
		Email: "keep@example.com",
	}
	updateCalled := false
	repo := &mockUserRepo{
		findBySubFn: func(_ context.Context, _ string) (*model.User, error) {
			return existing, nil
		},
		updateProfileFn: func(_ context.Context, _ *model.User) error {
			updateCalled = true
			return nil
		},
	}
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			// emailクレームなし
			return &VerifiedClaims{Sub: "sub-123"}, nil
		},
	}
	svc := NewService(verifier, &mockIssuer{}, repo)

	_, user, err := svc.Login(context.Background(), "valid-credential")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if updateCalled {
		t.Error("UpdateProfile should not be called when nothing changed")
	}
	if user.Email != "keep@example.com" {
		t.Errorf("user.Email = %q, should be preserved", user.Email)
	}
}

// 検証失敗時にCREDENTIAL_INVALIDが返り詳細が漏れないことを検証
func TestService_Login_VerificationFailure_ReturnsCredentialInvalid(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			return nil, errors.New("signature mismatch: internal detail")
		},
	}
	svc := NewService(verifier, &mockIssuer{}, &mockUserRepo{})

	_, _, err := svc.Login(context.Background(), "bad-credential")
	if err == nil {
		t.Fatal("expected error for failed verification")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeCredentialInvalid {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeCredentialInvalid)
	}
}

// subjectが欠落したクレームが拒否されることを検証
func TestService_Login_MissingSubject_ReturnsCredentialInvalid(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			return &VerifiedClaims{Email: "a@example.com"}, nil
		},
	}
	svc := NewService(verifier, &mockIssuer{}, &mockUserRepo{})

	_, _, err := svc.Login(context.Background(), "credential-without-sub")
	if err == nil {
		t.Fatal("expected error for missing subject")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeCredentialInvalid {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeCredentialInvalid)
	}
}

// 同時初回ログインの一意制約違反から勝者の行を再読込してリカバリすることを検証
func TestService_Login_ConcurrentCreation_RecoversWinnerRow(t *testing.T) {
	winner := &model.User{ID: "winner-id", Sub: "sub-123"}
	firstLookup := true
	repo := &mockUserRepo{
		findBySubFn: func(_ context.Context, _ string) (*model.User, error) {
			// 1回目の検索では未登録、INSERT失敗後の再読込では勝者の行が見える
			if firstLookup {
				firstLookup = false
				return nil, nil
			}
			return winner, nil
		},
		createFn: func(_ context.Context, _ *model.User) error {
			return &pq.Error{Code: "23505"}
		},
	}
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			return &VerifiedClaims{Sub: "sub-123"}, nil
		},
	}
	svc := NewService(verifier, &mockIssuer{}, repo)

	_, user, err := svc.Login(context.Background(), "valid-credential")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.ID != "winner-id" {
		t.Errorf("user.ID = %q, want winner's row %q", user.ID, "winner-id")
	}
}

// 一意制約違反以外のINSERT失敗はエラーとして返ることを検証
func TestService_Login_CreateFailure_ReturnsError(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(_ context.Context, _ *model.User) error {
			return errors.New("connection reset")
		},
	}
	verifier := &mockVerifier{
		verifyFn: func(_ context.Context, _ string) (*VerifiedClaims, error) {
			return &VerifiedClaims{Sub: "sub-123"}, nil
		},
	}
	svc := NewService(verifier, &mockIssuer{}, repo)

	if _, _, err := svc.Login(context.Background(), "valid-credential"); err == nil {
		t.Fatal("expected error for non-constraint insert failure")
	}
}

// CurrentUserが登録済みユーザーを返すことを検証
func TestService_CurrentUser_ReturnsUser(t *testing.T) {
	repo := &mockUserRepo{
		findBySubFn: func(_ context.Context, sub string) (*model.User, error) {
			return &model.User{ID: "user-1", Sub: sub}, nil
		},
	}
	svc := NewService(&mockVerifier{}, &mockIssuer{}, repo)

	user, err := svc.CurrentUser(context.Background(), "sub-123")
	if err != nil {
		t.Fatalf("CurrentUser returned error: %v", err)
	}
	if user.Sub != "sub-123" {
		t.Errorf("user.Sub = %q, want %q", user.Sub, "sub-123")
	}
}

// 未登録subjectでUSER_NOT_FOUNDが返ることを検証
func TestService_CurrentUser_NotFound_ReturnsError(t *testing.T) {
	svc := NewService(&mockVerifier{}, &mockIssuer{}, &mockUserRepo{})

	_, err := svc.CurrentUser(context.Background(), "unknown-sub")
	if err == nil {
		t.Fatal("expected error for unknown subject")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}
