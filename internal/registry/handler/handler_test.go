package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"idregistry/internal/platform/middleware"
	"idregistry/internal/registry/handler/mocks"
	"idregistry/internal/registry/models"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/testutil"
)

// =============================================================================
// Registry Handler Test Suite
// =============================================================================
// Justification for unit tests: the handler owns request decoding, input
// validation and the mapping of domain error codes to HTTP statuses. The
// service is mocked so each mapping is asserted in isolation.

type fixedValidator struct{}

// ValidateToken treats the bearer token itself as the principal.
func (fixedValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	p, err := domain.ParsePrincipal(token)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{Principal: p}, nil
}

type RegistryHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestRegistryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistryHandlerSuite))
}

func (s *RegistryHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger, fixedValidator{}).Register(s.router)
}

func (s *RegistryHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RegistryHandlerSuite) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if caller != "" {
		req = testutil.WithBearer(req, caller)
	}
	return testutil.Serve(s.router, req)
}

func (s *RegistryHandlerSuite) TestRequiresBearerToken() {
	rr := s.do(http.MethodPost, "/identities", "", RegisterRequest{FirstName: "a", LastName: "b"})
	testutil.AssertError(s.T(), rr, http.StatusUnauthorized, "unauthenticated")
}

func (s *RegistryHandlerSuite) TestRegister() {
	s.Run("creates identity with encoded person", func() {
		s.service.EXPECT().
			Register(gomock.Any(), domain.Principal("0xp1"), models.Payload(`{"first_name":"Super","last_name":"Doge","birthdate":946702800}`)).
			Return(domain.IdentityID(1), nil)

		rr := s.do(http.MethodPost, "/identities", "0xp1", RegisterRequest{FirstName: " Super ", LastName: "Doge", Birthdate: 946702800})
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONField(s.T(), rr, "id", float64(1))
	})

	s.Run("missing names are rejected before the service", func() {
		rr := s.do(http.MethodPost, "/identities", "0xp1", RegisterRequest{LastName: "Doge"})
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed body is a bad request", func() {
		req := testutil.WithBearer(testutil.NewRawRequest(s.T(), http.MethodPost, "/identities", `{"first_name":`), "0xp1")
		rr := testutil.Serve(s.router, req)
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown fields are rejected", func() {
		req := testutil.WithBearer(testutil.NewRawRequest(s.T(), http.MethodPost, "/identities", `{"first_name":"a","last_name":"b","extra":1}`), "0xp1")
		rr := testutil.Serve(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("already registered is a conflict", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.IdentityID(0), dErrors.New(dErrors.CodeAlreadyRegistered, "caller already owns an identity"))

		rr := s.do(http.MethodPost, "/identities", "0xp1", RegisterRequest{FirstName: "a", LastName: "b"})
		testutil.AssertError(s.T(), rr, http.StatusConflict, "already_registered")
	})
}

func (s *RegistryHandlerSuite) TestView() {
	s.Run("returns the person", func() {
		s.service.EXPECT().View(gomock.Any(), domain.Principal("0xp2"), domain.IdentityID(1)).
			Return(models.Payload(`{"first_name":"Super"}`), nil)

		rr := s.do(http.MethodGet, "/identities/1", "0xp2", nil)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.DecodeJSON[IdentityResponse](s.T(), rr)
		s.Equal(domain.IdentityID(1), resp.ID)
		s.JSONEq(`{"first_name":"Super"}`, string(resp.Person))
	})

	s.Run("unauthorized viewer is forbidden", func() {
		s.service.EXPECT().View(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "caller may not view this identity"))

		rr := s.do(http.MethodGet, "/identities/1", "0xp2", nil)
		testutil.AssertError(s.T(), rr, http.StatusForbidden, "unauthorized")
	})

	s.Run("invalid id is a validation error", func() {
		rr := s.do(http.MethodGet, "/identities/zero", "0xp2", nil)
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *RegistryHandlerSuite) TestLookups() {
	s.service.EXPECT().ResolveOwner(gomock.Any(), domain.IdentityID(4)).Return(domain.Principal("0xp4"), nil)
	rr := s.do(http.MethodGet, "/identities/4/owner", "0xany", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONField(s.T(), rr, "owner", "0xp4")

	s.service.EXPECT().ResolveID(gomock.Any(), domain.Principal("0xnobody")).
		Return(domain.IdentityID(0), dErrors.New(dErrors.CodeNotRegistered, "principal is not registered"))
	rr = s.do(http.MethodGet, "/principals/0xnobody/identity", "0xany", nil)
	testutil.AssertError(s.T(), rr, http.StatusNotFound, "not_registered")
}

func (s *RegistryHandlerSuite) TestMutationsMapErrors() {
	cases := []struct {
		name   string
		path   string
		body   any
		expect func()
		status int
		code   string
	}{
		{
			name: "grant viewer",
			path: "/viewers",
			body: GrantViewerRequest{Viewer: "0xp2"},
			expect: func() {
				s.service.EXPECT().GrantViewer(gomock.Any(), domain.Principal("0xp1"), domain.Principal("0xp2")).Return(nil)
			},
			status: http.StatusNoContent,
		},
		{
			name: "self signatory",
			path: "/signatories",
			body: AddSignatoryRequest{Signatory: "0xp1"},
			expect: func() {
				s.service.EXPECT().AddSignatory(gomock.Any(), domain.Principal("0xp1"), domain.Principal("0xp1")).
					Return(dErrors.New(dErrors.CodeSelfSignatoryNotAllowed, "caller cannot be its own signatory"))
			},
			status: http.StatusUnprocessableEntity,
			code:   "self_signatory_not_allowed",
		},
		{
			name: "cooldown",
			path: "/approvals",
			body: ApproveTransferRequest{Owner: "0xowner"},
			expect: func() {
				s.service.EXPECT().ApproveTransfer(gomock.Any(), domain.Principal("0xp1"), domain.Principal("0xowner")).
					Return(dErrors.New(dErrors.CodeCooldownActive, "too soon"))
			},
			status: http.StatusConflict,
			code:   "cooldown_active",
		},
		{
			name: "insufficient approvals",
			path: "/transfers",
			body: TransferRequest{To: "0xp4"},
			expect: func() {
				s.service.EXPECT().Transfer(gomock.Any(), domain.Principal("0xp1"), domain.Principal("0xp4")).
					Return(dErrors.New(dErrors.CodeInsufficientApprovals, "not enough"))
			},
			status: http.StatusConflict,
			code:   "insufficient_approvals",
		},
		{
			name: "internal error hides detail",
			path: "/transfers",
			body: TransferRequest{To: "0xp4"},
			expect: func() {
				s.service.EXPECT().Transfer(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to transfer identity"))
			},
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
		{
			name:   "invalid principal in body",
			path:   "/viewers",
			body:   GrantViewerRequest{Viewer: ""},
			expect: func() {},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			tc.expect()
			rr := s.do(http.MethodPost, tc.path, "0xp1", tc.body)
			testutil.AssertStatus(s.T(), rr, tc.status)
			if tc.code != "" {
				errResp := testutil.DecodeError(s.T(), rr)
				s.Equal(tc.code, errResp.Error)
				if tc.code == "internal_error" {
					s.Empty(errResp.ErrorDescription)
				}
			}
		})
	}
}

func (s *RegistryHandlerSuite) TestTransferStatus() {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.service.EXPECT().TransferStatus(gomock.Any(), domain.Principal("0xowner")).Return(models.TransferStatus{
		Owner: "0xowner", IdentityID: 1, ValidApprovals: 2, Required: 2, Approved: true, EvaluatedAt: at,
	}, nil)

	rr := s.do(http.MethodGet, "/approvals/0xowner", "0xp1", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.DecodeJSON[TransferStatusResponse](s.T(), rr)
	s.True(resp.Approved)
	s.Equal(2, resp.ValidApprovals)
	s.True(at.Equal(resp.EvaluatedAt))
}

func (s *RegistryHandlerSuite) TestCallerComesFromToken() {
	s.service.EXPECT().GrantViewer(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, caller, viewer domain.Principal) error {
			s.Equal(domain.Principal("0xtoken"), caller)
			return nil
		})
	rr := s.do(http.MethodPost, "/viewers", "0xtoken", GrantViewerRequest{Viewer: "0xv"})
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
}
