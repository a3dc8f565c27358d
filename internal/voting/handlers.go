package voting

import (
	"errors"
	"fmt"
	"time"

	"coopvote-backend/internal/audit"
	"coopvote-backend/internal/eligibility"
	"coopvote-backend/internal/ledger"
	"coopvote-backend/internal/members"
	"coopvote-backend/internal/metrics"
	"coopvote-backend/internal/models"
	"coopvote-backend/internal/pkg/response"
	"coopvote-backend/internal/pkg/validation"
	"coopvote-backend/internal/receipt"
	"coopvote-backend/internal/verify"

	"github.com/gofiber/fiber/v2"
)

// Generic message for any verification mismatch; which factor failed is
// logged for audit but never told to the client.
const verifyFailedMessage = "The details provided do not match our records"

const sessionExpiredMessage = "Session expired, please start over from branch selection"

// Handlers drives the voting flow: branch selection, member search, identity
// verification, info update, ballot, submission, confirmation, receipt.
type Handlers struct {
	Members  *members.Service
	Ledger   *ledger.Service
	Ballots  *BallotService
	Receipts *receipt.Renderer
	Audit    *audit.Recorder
	Store    *Store
}

// Branches GET /voting/branches — active branches to start from.
func (h *Handlers) Branches(c *fiber.Ctx) error {
	branches, err := h.Ballots.ActiveBranches(c.Context())
	if err != nil {
		return response.Error(c, "Could not load branches", fiber.StatusServiceUnavailable, nil)
	}
	return response.Success(c, "Branches retrieved", branches, nil)
}

// SelectBranch POST /voting/select-branch — starts a fresh session bound to
// an active branch. Any prior session state is discarded.
func (h *Handlers) SelectBranch(c *fiber.Ctx) error {
	var body struct {
		BranchID uint `json:"branch_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.BranchID == 0 {
		return response.Error(c, "branch_id is required", fiber.StatusBadRequest, nil)
	}
	branch, err := h.Ballots.FindActiveBranch(c.Context(), body.BranchID)
	if err != nil {
		return response.Error(c, "Branch not found or inactive", fiber.StatusNotFound, nil)
	}

	sess := BeginSession(c)
	sess.BranchID = branch.BranchID
	sess.BranchNumber = branch.BranchNumber
	return response.Success(c, "Branch selected", fiber.Map{
		"branch_id":     branch.BranchID,
		"branch_number": branch.BranchNumber,
		"name":          branch.Name,
	}, nil)
}

// SearchMember POST /voting/search-member — name/code search scoped to the
// session's branch, at most 15 rows.
func (h *Handlers) SearchMember(c *fiber.Ctx) error {
	sess := h.sessionWithBranch(c)
	if sess == nil {
		return response.Unauthorized(c, "Select a branch first")
	}
	var body struct {
		SearchTerm string `json:"search_term"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "search_term is required", fiber.StatusBadRequest, nil)
	}
	if !validation.IsValidSearchTerm(body.SearchTerm) {
		return response.Error(c, "Search term must be at least 3 characters", fiber.StatusBadRequest,
			fiber.Map{"field": "search_term"})
	}

	found, err := h.Members.Search(c.Context(), sess.BranchNumber, body.SearchTerm)
	if err != nil {
		return response.Error(c, "Search failed", fiber.StatusServiceUnavailable, nil)
	}
	out := make([]fiber.Map, 0, len(found))
	for i := range found {
		out = append(out, fiber.Map{
			"member_id": found[i].MemberID,
			"code":      found[i].Code,
			"full_name": found[i].FullName(),
		})
	}
	return response.Success(c, "Members retrieved", fiber.Map{"members": out}, nil)
}

// SelectMember POST /voting/select-member — binds the session to a member of
// the branch. A member who already has votes goes straight to the
// already-voted terminal state, never reaching verification.
func (h *Handlers) SelectMember(c *fiber.Ctx) error {
	sess := h.sessionWithBranch(c)
	if sess == nil {
		return response.Unauthorized(c, "Select a branch first")
	}
	var body struct {
		MemberID uint `json:"member_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.MemberID == 0 {
		return response.Error(c, "member_id is required", fiber.StatusBadRequest, nil)
	}
	m, err := h.Members.FindByID(c.Context(), body.MemberID)
	if err != nil {
		if errors.Is(err, members.ErrMemberNotFound) {
			return response.Error(c, "Member not found", fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	if m.BranchNumber != sess.BranchNumber {
		return response.Error(c, "Member does not belong to this branch", fiber.StatusUnprocessableEntity, nil)
	}

	voted, err := h.Ledger.HasVoted(c.Context(), m.Code, sess.BranchNumber)
	if err != nil {
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	if voted {
		return h.terminateAlreadyVoted(c, sess, m.Code)
	}

	sess.MemberID = m.MemberID
	sess.MemberCode = m.Code
	sess.Verified = false
	sess.InfoUpdated = false
	return response.Success(c, "Member selected", fiber.Map{
		"member_id": m.MemberID,
		"code":      m.Code,
		"full_name": m.FullName(),
	}, nil)
}

// VerifyIdentity POST /voting/verify-identity — share-account suffix plus at
// least one knowledge factor. Success stamps the 30-minute verified window.
func (h *Handlers) VerifyIdentity(c *fiber.Ctx) error {
	sess := h.sessionWithMember(c)
	if sess == nil {
		return response.Unauthorized(c, "Select a member first")
	}
	var body struct {
		ShareAccountLast4 string `json:"share_account_last4"`
		MiddleName        string `json:"middle_name"`
		BirthDate         string `json:"birth_date"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if !validation.IsValidLastFour(body.ShareAccountLast4) {
		return response.Error(c, "share_account_last4 must be exactly 4 digits", fiber.StatusBadRequest,
			fiber.Map{"field": "share_account_last4"})
	}
	if body.MiddleName == "" && body.BirthDate == "" {
		return response.Error(c, "Provide your middle name or birth date", fiber.StatusBadRequest,
			fiber.Map{"fields": []string{"middle_name", "birth_date"}})
	}
	in := verify.Input{LastFour: body.ShareAccountLast4, MiddleName: body.MiddleName}
	if body.BirthDate != "" {
		parsed, ok := validation.ParseBirthDate(body.BirthDate)
		if !ok {
			return response.Error(c, "birth_date must be YYYY-MM-DD", fiber.StatusBadRequest,
				fiber.Map{"field": "birth_date"})
		}
		in.BirthDate = &parsed
	}

	m, err := h.Members.FindByID(c.Context(), sess.MemberID)
	if err != nil {
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}

	// A ballot may have been cast on another channel since member selection.
	voted, err := h.Ledger.HasVoted(c.Context(), m.Code, sess.BranchNumber)
	if err != nil {
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	if voted {
		return h.terminateAlreadyVoted(c, sess, m.Code)
	}

	ok, kind := verify.Verify(m, in)
	if !ok {
		metrics.VerificationFailures.Inc()
		h.Audit.Record(c.Context(), audit.KindVerificationFailed, m.Code, sess.BranchNumber, map[string]interface{}{
			"failure_kind": string(kind),
			"origin":       c.IP(),
		})
		return response.Error(c, verifyFailedMessage, fiber.StatusUnauthorized, nil)
	}

	sess.Verified = true
	sess.VerifiedAt = time.Now()
	h.Audit.Record(c.Context(), audit.KindVerified, m.Code, sess.BranchNumber, nil)
	return response.Success(c, "Identity verified", fiber.Map{
		"verified_until": sess.VerifiedAt.Add(VerifiedTTL),
	}, nil)
}

// UpdateInfo POST /voting/update-info — persists contact edits, then re-runs
// the eligibility rules. Failing them here is terminal for the session.
func (h *Handlers) UpdateInfo(c *fiber.Ctx) error {
	sess, errResp := h.requireVerified(c)
	if sess == nil {
		return errResp
	}
	var body struct {
		Phone   *string `json:"phone"`
		Email   *string `json:"email"`
		Address *string `json:"address"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.Email != nil && *body.Email != "" && !validation.IsValidEmail(*body.Email) {
		return response.Error(c, "Invalid email address", fiber.StatusBadRequest,
			fiber.Map{"field": "email"})
	}

	m, err := h.Members.UpdateContact(c.Context(), sess.MemberID, members.ContactUpdate{
		Phone:   body.Phone,
		Email:   body.Email,
		Address: body.Address,
	})
	if err != nil {
		return response.Error(c, "Could not update member info", fiber.StatusServiceUnavailable, nil)
	}

	if terminal, resp := h.checkEligibility(c, sess, m); terminal {
		return resp
	}
	sess.InfoUpdated = true
	return response.Success(c, "Member info updated", fiber.Map{
		"member_id": m.MemberID,
		"phone":     m.Phone,
		"email":     m.Email,
		"address":   m.Address,
	}, nil)
}

// Ballot GET /voting/ballot — active positions with candidates, eligibility
// re-checked immediately before showing. An empty ballot is a block, not an
// error.
func (h *Handlers) Ballot(c *fiber.Ctx) error {
	sess, errResp := h.requireVerified(c)
	if sess == nil {
		return errResp
	}
	if !sess.InfoUpdated {
		return response.Error(c, "Confirm your member info first", fiber.StatusConflict, nil)
	}

	m, err := h.Members.FindByID(c.Context(), sess.MemberID)
	if err != nil {
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	if terminal, resp := h.checkEligibility(c, sess, m); terminal {
		return resp
	}

	positions, err := h.Ballots.LoadBallot(c.Context())
	if err != nil {
		return response.Error(c, "Could not load ballot", fiber.StatusServiceUnavailable, nil)
	}
	if len(positions) == 0 {
		return response.Success(c, "No ballot available", fiber.Map{
			"available": false,
			"positions": []models.Position{},
		}, nil)
	}
	return response.Success(c, "Ballot retrieved", fiber.Map{
		"available": true,
		"positions": positions,
	}, nil)
}

// SubmitVotes POST /voting/submit-votes — hands the selections to the ledger.
// Client-side max-per-position checks are advisory; the ledger's transaction
// is authoritative.
func (h *Handlers) SubmitVotes(c *fiber.Ctx) error {
	sess, errResp := h.requireVerified(c)
	if sess == nil {
		return errResp
	}
	if !sess.InfoUpdated {
		return response.Error(c, "Confirm your member info first", fiber.StatusConflict, nil)
	}
	if sess.VotesSubmitted {
		// Resubmission of the form after success: point back to the receipt,
		// never attempt a second cast.
		return response.Error(c, "Ballot already submitted", fiber.StatusConflict,
			fiber.Map{"control_number": sess.ControlNumber})
	}

	var body struct {
		Votes ledger.Selections `json:"votes"`
	}
	if err := c.BodyParser(&body); err != nil || len(body.Votes) == 0 {
		return response.Error(c, "votes are required", fiber.StatusBadRequest, nil)
	}

	m, err := h.Members.FindByID(c.Context(), sess.MemberID)
	if err != nil {
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	if terminal, resp := h.checkEligibility(c, sess, m); terminal {
		return resp
	}

	controlNumber, err := h.Ledger.CastVotes(c.Context(), ledger.CastVotesInput{
		MemberCode:   sess.MemberCode,
		BranchNumber: sess.BranchNumber,
		Selections:   body.Votes,
	})
	if err != nil {
		return h.castFailure(c, sess, err)
	}

	sess.ControlNumber = controlNumber
	sess.VotesSubmitted = true
	metrics.BallotsCast.Inc()
	h.Audit.Record(c.Context(), audit.KindVoteCast, sess.MemberCode, sess.BranchNumber, map[string]interface{}{
		"control_number": controlNumber,
		"selections":     len(body.Votes),
	})
	return response.SuccessCreated(c, "Votes submitted", fiber.Map{
		"control_number": controlNumber,
	}, nil)
}

// Confirmation GET /voting/confirmation — the committed ballot, grouped by
// position, with the control number.
func (h *Handlers) Confirmation(c *fiber.Ctx) error {
	sess := h.sessionSubmitted(c)
	if sess == nil {
		return response.Unauthorized(c, "No submitted ballot in this session")
	}
	m, err := h.Members.FindByID(c.Context(), sess.MemberID)
	if err != nil {
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	grouped, err := h.Ballots.GroupedVotes(c.Context(), sess.MemberCode, sess.BranchNumber)
	if err != nil {
		return response.Error(c, "Could not load votes", fiber.StatusServiceUnavailable, nil)
	}
	return response.Success(c, "Ballot confirmed", fiber.Map{
		"member_name":    m.FullName(),
		"member_code":    sess.MemberCode,
		"branch_number":  sess.BranchNumber,
		"control_number": sess.ControlNumber,
		"positions":      grouped,
	}, nil)
}

// DownloadReceipt GET /voting/receipt — renders the PDF receipt and, on
// success, ends the session. The receipt is a one-time download.
func (h *Handlers) DownloadReceipt(c *fiber.Ctx) error {
	sess := h.sessionSubmitted(c)
	if sess == nil {
		return response.Unauthorized(c, "No submitted ballot in this session")
	}
	m, err := h.Members.FindByID(c.Context(), sess.MemberID)
	if err != nil {
		return response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	grouped, err := h.Ballots.GroupedVotes(c.Context(), sess.MemberCode, sess.BranchNumber)
	if err != nil {
		return response.Error(c, "Could not load votes", fiber.StatusServiceUnavailable, nil)
	}

	lines := make([]receipt.PositionVotes, 0, len(grouped))
	for _, g := range grouped {
		lines = append(lines, receipt.PositionVotes{Title: g.Title, Candidates: g.Candidates})
	}
	pdf, err := h.Receipts.Render(receipt.Data{
		MemberName:    m.FullName(),
		MemberCode:    sess.MemberCode,
		BranchNumber:  sess.BranchNumber,
		ControlNumber: sess.ControlNumber,
		IssuedAt:      time.Now(),
		Positions:     lines,
	})
	if err != nil {
		return response.Error(c, "Could not render receipt", fiber.StatusInternalServerError, nil)
	}

	h.Audit.Record(c.Context(), audit.KindReceiptDownloaded, sess.MemberCode, sess.BranchNumber, map[string]interface{}{
		"control_number": sess.ControlNumber,
	})
	DestroySession(c, h.Store)

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="vote-receipt-%s-%d.pdf"`, sess.BranchNumber, sess.ControlNumber))
	return c.Send(pdf)
}

// AlreadyVoted GET /voting/already-voted — terminal screen, meaningful only
// when the controller routed the session here.
func (h *Handlers) AlreadyVoted(c *fiber.Ctx) error {
	sess := CurrentSession(c)
	if sess == nil || sess.Outcome != OutcomeAlreadyVoted {
		return response.Error(c, "Nothing to show", fiber.StatusNotFound, nil)
	}
	return response.Success(c, "A ballot has already been cast for this member", fiber.Map{
		"outcome": sess.Outcome,
	}, nil)
}

// NotQualified GET /voting/not-qualified — terminal screen with the
// human-readable eligibility reason.
func (h *Handlers) NotQualified(c *fiber.Ctx) error {
	sess := CurrentSession(c)
	if sess == nil || sess.Outcome != OutcomeNotQualified {
		return response.Error(c, "Nothing to show", fiber.StatusNotFound, nil)
	}
	return response.Success(c, "Member is not qualified to vote", fiber.Map{
		"outcome": sess.Outcome,
		"reason":  sess.OutcomeReason,
	}, nil)
}

// --- gates ---

func (h *Handlers) sessionWithBranch(c *fiber.Ctx) *Session {
	sess := CurrentSession(c)
	if sess == nil || sess.BranchNumber == "" || sess.Outcome != "" {
		return nil
	}
	return sess
}

func (h *Handlers) sessionWithMember(c *fiber.Ctx) *Session {
	sess := h.sessionWithBranch(c)
	if sess == nil || sess.MemberID == 0 {
		return nil
	}
	return sess
}

// requireVerified returns the session when the verified window is live. On
// expiry the whole session is reset and the voter restarts from the top.
func (h *Handlers) requireVerified(c *fiber.Ctx) (*Session, error) {
	sess := h.sessionWithMember(c)
	if sess == nil {
		return nil, response.Unauthorized(c, "Verify your identity first")
	}
	if !sess.Verified {
		return nil, response.Unauthorized(c, "Verify your identity first")
	}
	if !sess.VerifiedLive(time.Now()) {
		h.Audit.Record(c.Context(), audit.KindSessionExpired, sess.MemberCode, sess.BranchNumber, nil)
		DestroySession(c, h.Store)
		return nil, response.Error(c, sessionExpiredMessage, fiber.StatusUnauthorized,
			fiber.Map{"restart": true})
	}
	return sess, nil
}

func (h *Handlers) sessionSubmitted(c *fiber.Ctx) *Session {
	sess := CurrentSession(c)
	if sess == nil || !sess.VotesSubmitted || sess.ControlNumber == 0 {
		return nil
	}
	return sess
}

// --- terminal routing ---

// checkEligibility re-runs the rules against a fresh member snapshot and the
// live has-voted flag. Returns (true, response) when the outcome is terminal.
func (h *Handlers) checkEligibility(c *fiber.Ctx, sess *Session, m *models.Member) (bool, error) {
	voted, err := h.Ledger.HasVoted(c.Context(), m.Code, sess.BranchNumber)
	if err != nil {
		return true, response.Error(c, "Lookup failed", fiber.StatusServiceUnavailable, nil)
	}
	res := eligibility.Evaluate(m, voted)
	if res.Eligible {
		return false, nil
	}
	if res.AlreadyVoted {
		return true, h.terminateAlreadyVoted(c, sess, m.Code)
	}
	metrics.EligibilityRejections.Inc()
	h.Audit.Record(c.Context(), audit.KindNotQualified, m.Code, sess.BranchNumber, map[string]interface{}{
		"reason": res.Reason,
	})
	sess.Terminate(OutcomeNotQualified, res.Reason)
	return true, response.Error(c, res.Reason, fiber.StatusForbidden,
		fiber.Map{"redirect": "/voting/not-qualified"})
}

func (h *Handlers) terminateAlreadyVoted(c *fiber.Ctx, sess *Session, memberCode string) error {
	metrics.DuplicateVoteRejections.Inc()
	h.Audit.Record(c.Context(), audit.KindDuplicateVote, memberCode, sess.BranchNumber, nil)
	sess.Terminate(OutcomeAlreadyVoted, "")
	return response.Error(c, "A ballot has already been cast for this member", fiber.StatusConflict,
		fiber.Map{"redirect": "/voting/already-voted"})
}

// castFailure maps ledger errors to responses: integrity failures keep the
// voter on the ballot to correct the selection, duplicates are terminal, and
// anything else is a retryable transient fault.
func (h *Handlers) castFailure(c *fiber.Ctx, sess *Session, err error) error {
	var limitErr *ledger.PositionLimitError
	switch {
	case errors.Is(err, ledger.ErrDuplicateVote):
		return h.terminateAlreadyVoted(c, sess, sess.MemberCode)
	case errors.As(err, &limitErr):
		metrics.BallotRejections.Inc()
		h.Audit.Record(c.Context(), audit.KindPositionLimit, sess.MemberCode, sess.BranchNumber, map[string]interface{}{
			"position": limitErr.Title,
			"limit":    limitErr.Limit,
			"selected": limitErr.Selected,
		})
		return response.Error(c, limitErr.Error(), fiber.StatusUnprocessableEntity, fiber.Map{
			"position_id": limitErr.PositionID,
			"limit":       limitErr.Limit,
		})
	case errors.Is(err, ledger.ErrInvalidCandidate), errors.Is(err, ledger.ErrEmptyBallot):
		metrics.BallotRejections.Inc()
		h.Audit.Record(c.Context(), audit.KindInvalidCandidate, sess.MemberCode, sess.BranchNumber, nil)
		return response.Error(c, "Ballot contains an invalid selection", fiber.StatusUnprocessableEntity, nil)
	default:
		h.Audit.Record(c.Context(), audit.KindTransientFailure, sess.MemberCode, sess.BranchNumber, map[string]interface{}{
			"error": err.Error(),
		})
		return response.Error(c, "Temporary failure, please try again", fiber.StatusServiceUnavailable, nil)
	}
}
