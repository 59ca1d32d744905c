package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"testing"
	"time"
)

type authPayload struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

type filingPayload struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	AckNumber   *string  `json:"ackNumber"`
	AllowedNext []string `json:"allowedNext"`
}

type computationPayload struct {
	TaxableIncome int64 `json:"taxableIncome"`
	TotalTax      int64 `json:"totalTax"`
	Refund        int64 `json:"refund"`
}

type apiError struct {
	Error string `json:"error"`
}

func TestITRFilingLifecycle(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	baseURL := getenv("ETAXMENTOR_HTTP_ADDR", "http://127.0.0.1:8080")

	userToken := registerAndLogin(t, baseURL, fmt.Sprintf("user-%d@demo.local", time.Now().UnixNano()))
	staffToken := login(t, baseURL, getenv("STAFF_EMAIL", "staff@demo.local"), getenv("STAFF_PASSWORD", "dev-password"))

	// Draft with salary income above the rebate band.
	f := createFiling(t, baseURL, userToken, map[string]interface{}{
		"pan":            "ABCDE1234F",
		"assessmentYear": "2025-26",
		"form": map[string]int64{
			"salaryIncome": 12_00_000,
			"section80C":   1_50_000,
			"tdsPaid":      1_20_000,
		},
	})
	if f.Status != "DRAFT" {
		t.Fatalf("expected DRAFT, got %s", f.Status)
	}

	resp, body := doJSON(t, http.MethodGet, baseURL+"/filings/itr/"+f.ID+"/computation", userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("computation status %d", resp.StatusCode)
	}
	var comp computationPayload
	if err := json.Unmarshal(body, &comp); err != nil {
		t.Fatalf("decode computation: %v", err)
	}
	if comp.TaxableIncome != 10_00_000 {
		t.Fatalf("taxable = %d, want 1000000", comp.TaxableIncome)
	}
	if comp.TotalTax != 1_17_000 {
		t.Fatalf("total tax = %d, want 117000", comp.TotalTax)
	}

	// The owner may only submit, not jump ahead.
	resp, body = doJSON(t, http.MethodPost, baseURL+"/filings/itr/"+f.ID+"/transition", userToken, map[string]interface{}{"to": "UNDER_REVIEW"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("owner transition status %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, baseURL+"/filings/itr/"+f.ID+"/submit", userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d, body %s", resp.StatusCode, body)
	}

	// A submitted filing can no longer be deleted by its owner.
	resp, _ = doJSON(t, http.MethodDelete, baseURL+"/filings/itr/"+f.ID, userToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete after submit status %d", resp.StatusCode)
	}

	// Staff walk the pipeline forward.
	for _, to := range []string{"UNDER_REVIEW", "CA_ASSIGNED", "PROCESSING"} {
		transition(t, baseURL, staffToken, f.ID, map[string]interface{}{"to": to})
	}

	// FILED requires an acknowledgment number.
	resp, body = doJSON(t, http.MethodPost, baseURL+"/filings/itr/"+f.ID+"/transition", staffToken, map[string]interface{}{"to": "FILED"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("filed without ack status %d, body %s", resp.StatusCode, body)
	}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error != "ack_number_required" {
		t.Fatalf("expected ack_number_required, got %s", body)
	}

	filed := transition(t, baseURL, staffToken, f.ID, map[string]interface{}{"to": "FILED", "ackNumber": "ITRACK-001"})
	if filed.AckNumber == nil || *filed.AckNumber != "ITRACK-001" {
		t.Fatalf("ack number not recorded: %+v", filed)
	}

	transition(t, baseURL, staffToken, f.ID, map[string]interface{}{"to": "ACKNOWLEDGED"})
	completed := transition(t, baseURL, staffToken, f.ID, map[string]interface{}{"to": "COMPLETED"})
	if completed.Status != "COMPLETED" {
		t.Fatalf("status %s, want COMPLETED", completed.Status)
	}

	// Backward moves are never legal.
	resp, _ = doJSON(t, http.MethodPost, baseURL+"/filings/itr/"+f.ID+"/transition", staffToken, map[string]interface{}{"to": "DRAFT"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("backward transition status %d", resp.StatusCode)
	}

	// COMPLETED is not terminal for ITR: a refund may follow.
	refunded := transition(t, baseURL, staffToken, f.ID, map[string]interface{}{"to": "REFUND_INITIATED", "refundAmount": 3000})
	if refunded.Status != "REFUND_INITIATED" {
		t.Fatalf("status %s, want REFUND_INITIATED", refunded.Status)
	}
	if len(refunded.AllowedNext) != 0 {
		t.Fatalf("terminal filing still has next states: %v", refunded.AllowedNext)
	}
}

func TestRejectionRequiresReason(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	baseURL := getenv("ETAXMENTOR_HTTP_ADDR", "http://127.0.0.1:8080")

	userToken := registerAndLogin(t, baseURL, fmt.Sprintf("user-%d@demo.local", time.Now().UnixNano()))
	staffToken := login(t, baseURL, getenv("STAFF_EMAIL", "staff@demo.local"), getenv("STAFF_PASSWORD", "dev-password"))

	f := createFiling(t, baseURL, userToken, map[string]interface{}{
		"pan":            "FGHIJ5678K",
		"assessmentYear": "2025-26",
		"form":           map[string]int64{"salaryIncome": 4_00_000},
	})

	resp, body := doJSON(t, http.MethodPost, baseURL+"/filings/itr/"+f.ID+"/transition", staffToken, map[string]interface{}{"to": "REJECTED"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reject without reason status %d, body %s", resp.StatusCode, body)
	}

	rejected := transition(t, baseURL, staffToken, f.ID, map[string]interface{}{"to": "REJECTED", "reason": "PAN mismatch"})
	if rejected.Status != "REJECTED" {
		t.Fatalf("status %s, want REJECTED", rejected.Status)
	}
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	baseURL := getenv("ETAXMENTOR_HTTP_ADDR", "http://127.0.0.1:8080")

	email := fmt.Sprintf("user-%d@demo.local", time.Now().UnixNano())
	tokenA := registerAndLogin(t, baseURL, email)
	tokenB := login(t, baseURL, email, "dev-password")

	// Warm both sessions so any verification cache holds them.
	for _, token := range []string{tokenA, tokenB} {
		resp, body := doJSON(t, http.MethodGet, baseURL+"/auth/me", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("me status %d, body %s", resp.StatusCode, body)
		}
	}

	resp, body := doJSON(t, http.MethodPost, baseURL+"/auth/change-password", tokenA, map[string]string{
		"currentPassword": "dev-password",
		"newPassword":     "dev-password-2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password status %d, body %s", resp.StatusCode, body)
	}

	// The other session dies immediately, not after a cache window.
	resp, _ = doJSON(t, http.MethodGet, baseURL+"/auth/me", tokenB, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked session status %d, want 401", resp.StatusCode)
	}

	// The session that changed the password survives.
	resp, _ = doJSON(t, http.MethodGet, baseURL+"/auth/me", tokenA, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("changing session status %d, want 200", resp.StatusCode)
	}
}

func TestDocumentDeleteIsOwnerOnly(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	baseURL := getenv("ETAXMENTOR_HTTP_ADDR", "http://127.0.0.1:8080")

	userToken := registerAndLogin(t, baseURL, fmt.Sprintf("user-%d@demo.local", time.Now().UnixNano()))
	staffToken := login(t, baseURL, getenv("STAFF_EMAIL", "staff@demo.local"), getenv("STAFF_PASSWORD", "dev-password"))

	docID := uploadDocument(t, baseURL, userToken)

	// Staff verify documents; they do not delete them.
	resp, body := doJSON(t, http.MethodDelete, baseURL+"/documents/"+docID, staffToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("staff delete status %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodDelete, baseURL+"/documents/"+docID, userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner delete status %d, body %s", resp.StatusCode, body)
	}
}

func uploadDocument(t *testing.T, baseURL, token string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="form16.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 test document")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.WriteField("docType", "FORM_16"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/documents", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d, body %s", resp.StatusCode, body)
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("missing document id")
	}
	return doc.ID
}

func registerAndLogin(t *testing.T, baseURL, email string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/auth/register", "", map[string]string{
		"name":     "Integration User",
		"email":    email,
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d, body %s", resp.StatusCode, body)
	}
	return login(t, baseURL, email, "dev-password")
}

func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d, body %s", resp.StatusCode, body)
	}
	var payload authPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("missing token")
	}
	return payload.Token
}

func createFiling(t *testing.T, baseURL, token string, payload map[string]interface{}) filingPayload {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/filings/itr", token, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create filing status %d, body %s", resp.StatusCode, body)
	}
	var f filingPayload
	if err := json.Unmarshal(body, &f); err != nil {
		t.Fatalf("decode filing: %v", err)
	}
	if f.ID == "" {
		t.Fatal("missing filing id")
	}
	return f
}

func transition(t *testing.T, baseURL, token, filingID string, payload map[string]interface{}) filingPayload {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/filings/itr/"+filingID+"/transition", token, payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition to %v status %d, body %s", payload["to"], resp.StatusCode, body)
	}
	var f filingPayload
	if err := json.Unmarshal(body, &f); err != nil {
		t.Fatalf("decode filing: %v", err)
	}
	return f
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, bytes.NewBuffer(bodyBytes))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, body
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
