package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-order-service/internal/service"

	authv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/auth/v1"
	commonv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/common/v1"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/grpc"
)

var ErrInvalidToken = errors.New("invalid or inactive token")

// Verifier turns a bearer token into the caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (service.Identity, error)
}

// IntrospectClient is the part of AuthServiceClient used for introspection.
type IntrospectClient interface {
	Introspect(ctx context.Context, in *authv1.IntrospectRequest, opts ...grpc.CallOption) (*authv1.IntrospectResponse, error)
}

// IntrospectVerifier asks the auth service whether the token is active.
type IntrospectVerifier struct {
	client IntrospectClient
}

func NewIntrospectVerifier(client IntrospectClient) *IntrospectVerifier {
	return &IntrospectVerifier{client: client}
}

func (v *IntrospectVerifier) Verify(ctx context.Context, token string) (service.Identity, error) {
	resp, err := v.client.Introspect(ctx, &authv1.IntrospectRequest{AccessToken: token})
	if err != nil {
		return service.Identity{}, fmt.Errorf("introspection failed: %w", err)
	}
	if resp == nil || !resp.GetActive() || resp.GetUserId().GetValue() == "" {
		return service.Identity{}, ErrInvalidToken
	}
	uid, err := uuid.Parse(resp.GetUserId().GetValue())
	if err != nil {
		return service.Identity{}, fmt.Errorf("%w: bad user id", ErrInvalidToken)
	}

	id := service.Identity{UserID: uid, Role: service.RoleCustomer}
	if role := resp.GetRole(); role != commonv1.Role_ROLE_UNSPECIFIED {
		id.Role = service.Role(role.String())
	}
	return id, nil
}

// JWTVerifier validates HS256 access tokens issued by the auth service
// without a network round trip.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

type accessClaims struct {
	Sub   string `json:"sub"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (service.Identity, error) {
	var opts []jwt.ParserOption
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return service.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	cc, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return service.Identity{}, ErrInvalidToken
	}
	uid, err := uuid.Parse(cc.Sub)
	if err != nil {
		return service.Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	id := service.Identity{UserID: uid, Role: service.RoleCustomer, Email: cc.Email}
	if cc.Role != "" {
		id.Role = service.Role(cc.Role)
	}
	return id, nil
}

// ExtractBearerToken извлекает токен из заголовка Authorization, устойчиво к
// кавычкам и хвостам после запятой.
func ExtractBearerToken(authz string) (string, bool) {
	if authz == "" {
		return "", false
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	t := strings.Trim(strings.TrimSpace(parts[1]), " \"'")
	if i := strings.IndexRune(t, ','); i >= 0 {
		t = strings.Trim(strings.TrimSpace(t[:i]), " \"'")
	}
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = strings.Trim(t[:i], " \"'")
	}
	return t, true
}

// WithIdentity stores id in ctx the way the service reads it.
func WithIdentity(ctx context.Context, id service.Identity) context.Context {
	ctx = service.WithUserID(ctx, id.UserID)
	if id.Role != "" {
		ctx = service.WithRole(ctx, id.Role)
	}
	if id.Email != "" {
		ctx = service.WithEmail(ctx, id.Email)
	}
	return ctx
}
