package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Users is the credential store contract. Counter and refresh-token
// mutations are expressed as atomic conditional updates so concurrent
// logins and refreshes from multiple devices never lose writes; see
// TrackFailedLogin and RotateRefreshToken.
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)

	TrackFailedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error

	PushRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) (*User, error)
	RemoveRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshTokens(ctx context.Context, id string) error

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error)
	SetRole(ctx context.Context, id string, role UserRole) error
	SetActive(ctx context.Context, id string, active bool) error

	HasAdmin(ctx context.Context) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

type users struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithUsersClock injects a custom clock (useful for tests).
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUsersRepository builds the Mongo backed credential store over the
// given collection.
func NewUsersRepository(coll *mongo.Collection, opts ...UsersOption) Users {
	repo := &users{
		coll: coll,
		now:  time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}

	return repo
}

// EnsureIndexes creates the unique identity indexes. Email and username are
// stored lowercased, so the unique constraint is effectively
// case-insensitive.
func (a *users) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "refreshTokens.token", Value: 1}},
		},
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to ensure user indexes")
	}
	return nil
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	record := &User{}
	if err := a.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(record); err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, withMeta(ErrIdentityNotFound, map[string]any{"id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return record, nil
}

// GetByIdentifier resolves a user by email or username, both matched
// case-insensitively.
func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	ident := normalizeIdentifier(identifier)

	record := &User{}
	filter := bson.M{"$or": bson.A{
		bson.M{"email": ident},
		bson.M{"username": ident},
	}}

	if err := a.coll.FindOne(ctx, filter).Decode(record); err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, withMeta(ErrIdentityNotFound, map[string]any{"identifier": identifier})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, record *User) (*User, error) {
	a.prepareUserDefaults(record)

	result, err := a.coll.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, withMeta(ErrDuplicateIdentity, map[string]any{
				"field": duplicateKeyField(err),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	if oid, ok := result.InsertedID.(bson.ObjectID); ok {
		record.ID = oid
	}

	return record, nil
}

// TrackFailedLogin applies one failed password attempt. The mutation is a
// targeted update ($inc / $set / $unset) computed by the lockout state
// machine, so concurrent failures never lose counts to a whole-document
// overwrite.
func (a *users) TrackFailedLogin(ctx context.Context, user *User) error {
	decision := NextFailedLogin(user, a.now())

	var update bson.M
	if decision.GraceReset {
		update = bson.M{
			"$set":   bson.M{"loginAttempts": 1},
			"$unset": bson.M{"lockUntil": ""},
		}
	} else {
		update = bson.M{"$inc": bson.M{"loginAttempts": 1}}
		if decision.LockUntil != nil {
			update["$set"] = bson.M{"lockUntil": *decision.LockUntil}
		}
	}

	if _, err := a.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, update); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
	}

	return nil
}

// TrackSuccessfulLogin resets the lockout counters and stamps lastLogin.
func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	now := a.now()
	update := bson.M{
		"$set":   bson.M{"lastLogin": now, "updatedAt": now},
		"$unset": bson.M{"loginAttempts": "", "lockUntil": ""},
	}

	if _, err := a.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, update); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track successful login")
	}

	return nil
}

func (a *users) PushRefreshToken(ctx context.Context, id, token string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	update := bson.M{"$push": bson.M{"refreshTokens": RefreshToken{
		Token:    token,
		IssuedAt: a.now(),
	}}}

	if _, err := a.coll.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token")
	}

	return nil
}

// RotateRefreshToken atomically replaces oldToken with newToken. The filter
// includes the presented token, so a token can be consumed exactly once:
// the second of two concurrent rotations of the same token matches nothing
// and fails, while rotations of two different tokens both succeed.
func (a *users) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	filter := bson.M{
		"_id":                 oid,
		"isActive":            true,
		"refreshTokens.token": oldToken,
	}
	update := bson.M{"$set": bson.M{
		"refreshTokens.$.token":    newToken,
		"refreshTokens.$.issuedAt": a.now(),
	}}

	record := &User{}
	err = a.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(record)

	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate refresh token")
	}

	return record, nil
}

// RemoveRefreshToken drops one token from the set. Removing a token that is
// not present is not an error, which makes logout idempotent.
func (a *users) RemoveRefreshToken(ctx context.Context, id, token string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	update := bson.M{"$pull": bson.M{"refreshTokens": bson.M{"token": token}}}
	if _, err := a.coll.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove refresh token")
	}

	return nil
}

// ClearRefreshTokens revokes every session for the user at once.
func (a *users) ClearRefreshTokens(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	update := bson.M{"$set": bson.M{"refreshTokens": bson.A{}}}
	if _, err := a.coll.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear refresh tokens")
	}

	return nil
}

func (a *users) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	update := bson.M{"$set": bson.M{"password": passwordHash, "updatedAt": a.now()}}
	result, err := a.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if result.MatchedCount == 0 {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	return nil
}

func (a *users) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	fields := bson.M{"updatedAt": a.now()}
	if update.FirstName != nil {
		fields["firstName"] = *update.FirstName
	}
	if update.LastName != nil {
		fields["lastName"] = *update.LastName
	}
	if update.Phone != nil {
		fields["phone"] = *update.Phone
	}
	if update.Profile != nil {
		fields["profile"] = *update.Profile
	}

	record := &User{}
	err = a.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(record)

	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, withMeta(ErrIdentityNotFound, map[string]any{"id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
	}

	return record, nil
}

func (a *users) SetRole(ctx context.Context, id string, role UserRole) error {
	if !IsValidRole(role) {
		return goerrors.New("unknown role", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"role": role})
	}

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	update := bson.M{"$set": bson.M{"role": role, "updatedAt": a.now()}}
	result, err := a.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update role")
	}

	if result.MatchedCount == 0 {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	return nil
}

// SetActive toggles the soft-delete flag. Deactivation does not clear the
// refresh-token set, but every auth path filters on isActive so existing
// sessions stop working immediately.
func (a *users) SetActive(ctx context.Context, id string, active bool) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	update := bson.M{"$set": bson.M{"isActive": active, "updatedAt": a.now()}}
	result, err := a.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update active flag")
	}

	if result.MatchedCount == 0 {
		return withMeta(ErrIdentityNotFound, map[string]any{"id": id})
	}

	return nil
}

// HasAdmin reports whether any admin principal exists; used by deployment
// bootstrap before seeding the initial admin.
func (a *users) HasAdmin(ctx context.Context) (bool, error) {
	count, err := a.coll.CountDocuments(ctx, bson.M{"role": RoleAdmin}, options.Count().SetLimit(1))
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count admin users")
	}
	return count > 0, nil
}

func (a *users) prepareUserDefaults(record *User) {
	record.Email = normalizeIdentifier(record.Email)
	record.Username = normalizeIdentifier(record.Username)

	if record.Role == "" {
		record.Role = RoleGuest
	}

	record.IsActive = true
	now := a.now()
	record.CreatedAt = &now
	record.UpdatedAt = &now
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// duplicateKeyField extracts which unique identity field a Mongo E11000
// error collided on. The index name is embedded in the server message.
func duplicateKeyField(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "email"):
		return "email"
	case strings.Contains(msg, "username"):
		return "username"
	default:
		return "identity"
	}
}
