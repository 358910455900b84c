package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestPurgeExpiredTokens(t *testing.T) {
	r := newRouter(New(nil, nil, stubMaint{n: 7}, nil))
	w := send(t, r, http.MethodPost, "/api/v1/maintenance/tokens/purge", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PurgeTokensResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Purged != 7 {
		t.Fatalf("resp = %+v err=%v", resp, err)
	}

	captureLogs(t)
	r = newRouter(New(nil, nil, stubMaint{err: errors.New("locked")}, nil))
	w = send(t, r, http.MethodPost, "/api/v1/maintenance/tokens/purge", nil, nil)
	if w.Code != http.StatusInternalServerError || decodeError(t, w).Code != ErrCodeInternal {
		t.Fatalf("error path = %d %s", w.Code, w.Body.String())
	}
}
