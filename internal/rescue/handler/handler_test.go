package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"reliefops/internal/rescue/handler/mocks"
	"reliefops/internal/rescue/models"
	"reliefops/internal/rescue/service"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	actor   id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.actor = id.UserID(uuid.New())
}

func sampleOperation(status models.Status) *models.Operation {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return &models.Operation{
		ID:             id.RescueOperationID(uuid.New()),
		Code:           "RSC-2026-00007",
		FloodZoneID:    id.FloodZoneID(uuid.New()),
		TargetLocation: orb.Point{26.1, 44.4},
		AssignedOrgID:  id.OrganizationID(uuid.New()),
		OperationType:  models.TypeEvacuation,
		Priority:       models.PriorityHigh,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *HandlerSuite) TestCreate() {
	zoneID := id.FloodZoneID(uuid.New())
	orgID := id.OrganizationID(uuid.New())

	s.Run("creates operation", func() {
		target := orb.Point{26.1, 44.4}
		s.service.EXPECT().Create(gomock.Any(), service.CreateRequest{
			FloodZoneID:            zoneID,
			TargetLocation:         &target,
			AssignedOrgID:          orgID,
			OperationType:          models.TypeEvacuation,
			EstimatedPersonsAtRisk: 4,
		}).Return(sampleOperation(models.StatusPending), nil)

		body := `{"flood_zone_id":"` + zoneID.String() + `","assigned_org_id":"` + orgID.String() +
			`","operation_type":"evacuation","estimated_persons_at_risk":4,` +
			`"target_location":{"type":"Point","coordinates":[26.1,44.4]}}`
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/rescue-operations", body)
		rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

		s.Equal(http.StatusCreated, rr.Code)
		resp := testutil.UnmarshalResponse[OperationResponse](s.T(), rr)
		s.Equal("RSC-2026-00007", resp.Code)
		s.Equal("pending", resp.Status)
	})

	s.Run("rejects missing target", func() {
		body := `{"flood_zone_id":"` + zoneID.String() + `","assigned_org_id":"` + orgID.String() +
			`","operation_type":"evacuation"}`
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/rescue-operations", body)
		rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("requires an actor", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/rescue-operations", `{}`)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *HandlerSuite) TestDispatch() {
	s.Run("second dispatch is a precondition failure", func() {
		opID := id.RescueOperationID(uuid.New())
		s.service.EXPECT().Dispatch(gomock.Any(), opID).
			Return(nil, dErrors.IllegalTransition("rescue operation", "dispatched", "dispatch"))

		req := testutil.NewRequest(s.T(), http.MethodPost, "/rescue-operations/"+opID.String()+"/dispatch")
		rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

		s.Equal(http.StatusPreconditionFailed, rr.Code)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("dispatched", body.Details["current_status"])
		s.Equal("dispatch", body.Details["action"])
	})
}

func (s *HandlerSuite) TestUpdateStatus() {
	opID := id.RescueOperationID(uuid.New())
	rescued := 3
	s.service.EXPECT().UpdateStatus(gomock.Any(), opID, models.StatusOnSite, &rescued, nil).
		Return(sampleOperation(models.StatusOnSite), nil)

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/rescue-operations/"+opID.String()+"/status",
		`{"status":"on_site","persons_rescued":3}`)
	rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal("on_site", testutil.UnmarshalResponse[OperationResponse](s.T(), rr).Status)
}

func (s *HandlerSuite) TestComplete() {
	opID := id.RescueOperationID(uuid.New())

	s.Run("requires persons_rescued", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/rescue-operations/"+opID.String()+"/complete", `{}`)
		rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("completing twice is a conflict", func() {
		s.service.EXPECT().Complete(gomock.Any(), opID, 5, nil).
			Return(nil, dErrors.New(dErrors.CodeConflict, "rescue operation is already completed"))

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/rescue-operations/"+opID.String()+"/complete",
			`{"persons_rescued":5}`)
		rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *HandlerSuite) TestAssignTeam() {
	opID := id.RescueOperationID(uuid.New())
	a, b := id.UserID(uuid.New()), id.UserID(uuid.New())

	s.service.EXPECT().AssignTeam(gomock.Any(), opID, []id.UserID{a, b}, &b).
		Return(&models.Team{OperationID: opID, Members: []models.TeamMember{
			{OperationID: opID, UserID: a, Role: models.RoleMember},
			{OperationID: opID, UserID: b, Role: models.RoleLeader},
		}}, nil)

	body := `{"user_ids":["` + a.String() + `","` + b.String() + `"],"leader_id":"` + b.String() + `"}`
	req := testutil.NewRequestWithBody(s.T(), http.MethodPut, "/rescue-operations/"+opID.String()+"/team", body)
	rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[TeamResponse](s.T(), rr)
	s.Equal(b.String(), resp.LeaderID)
	s.Len(resp.Members, 2)
}

func (s *HandlerSuite) TestList() {
	s.service.EXPECT().List(gomock.Any(), models.ListFilter{Status: models.StatusPending}).
		Return([]*models.Operation{sampleOperation(models.StatusPending)}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/rescue-operations?status=pending"))

	s.Equal(http.StatusOK, rr.Code)
	s.Len(testutil.UnmarshalResponse[ListResponse](s.T(), rr).Operations, 1)
}

func (s *HandlerSuite) TestDelete() {
	opID := id.RescueOperationID(uuid.New())
	s.service.EXPECT().Delete(gomock.Any(), opID).
		Return(dErrors.IllegalTransition("rescue operation", "completed", "delete"))

	req := testutil.NewRequest(s.T(), http.MethodDelete, "/rescue-operations/"+opID.String())
	rr := testutil.DoRequest(s.router, testutil.WithActor(req, s.actor))

	s.Equal(http.StatusPreconditionFailed, rr.Code)
}
