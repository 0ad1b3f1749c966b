package xianyu

import (
	"errors"
	"net/http"
	"testing"

	"github.com/joestump/marketwatch/internal/adapter"
)

func TestSignRequestDeterministic(t *testing.T) {
	a := signRequest("seed1", "1700000000000", "appkey", `{"keyword":"lens"}`)
	b := signRequest("seed1", "1700000000000", "appkey", `{"keyword":"lens"}`)
	if a != b {
		t.Fatal("signRequest: want deterministic output for identical input")
	}
	if len(a) != 32 {
		t.Errorf("signRequest: len = %d, want 32 (md5 hex)", len(a))
	}
}

func TestSignRequestChangesWithSeed(t *testing.T) {
	a := signRequest("seed1", "1700000000000", "appkey", `{}`)
	b := signRequest("seed2", "1700000000000", "appkey", `{}`)
	if a == b {
		t.Error("signRequest: want different signatures for different seeds")
	}
}

func TestClassifyAndParseAuthStatus(t *testing.T) {
	_, err := classifyAndParse(http.StatusUnauthorized, nil)
	assertKind(t, err, adapter.KindAuth)
}

func TestClassifyAndParseBlockedStatus(t *testing.T) {
	_, err := classifyAndParse(http.StatusTooManyRequests, nil)
	assertKind(t, err, adapter.KindBlocked)
}

func TestClassifyAndParseTransientStatus(t *testing.T) {
	_, err := classifyAndParse(http.StatusInternalServerError, nil)
	assertKind(t, err, adapter.KindTransient)
}

func TestClassifyAndParseEmptyPage(t *testing.T) {
	body := []byte(`{"ret":["SUCCESS::调用成功"],"data":{"resultList":[]}}`)
	_, err := classifyAndParse(http.StatusOK, body)
	assertKind(t, err, adapter.KindEmptyPage)
}

func TestClassifyAndParseSessionExpired(t *testing.T) {
	body := []byte(`{"ret":["FAIL_SYS_SESSION_EXPIRED::哎哟喂,出错了"]}`)
	_, err := classifyAndParse(http.StatusOK, body)
	assertKind(t, err, adapter.KindAuth)
}

func TestClassifyAndParseBlockedRiskControl(t *testing.T) {
	body := []byte(`{"ret":["RGV587_ERROR::risk control"]}`)
	_, err := classifyAndParse(http.StatusOK, body)
	assertKind(t, err, adapter.KindBlocked)
}

func TestClassifyAndParseSuccess(t *testing.T) {
	body := []byte(`{"ret":["SUCCESS::调用成功"],"data":{"resultList":[{"itemId":"123","title":"lens","price":"10.00"}]}}`)
	items, err := classifyAndParse(http.StatusOK, body)
	if err != nil {
		t.Fatalf("classifyAndParse: %v", err)
	}
	if len(items) != 1 || items[0].ID != "123" {
		t.Errorf("items = %+v, want one item with ID 123", items)
	}
}

func assertKind(t *testing.T, err error, want adapter.ErrorKind) {
	t.Helper()
	var aerr *adapter.Error
	if !errors.As(err, &aerr) {
		t.Fatalf("error = %v, want *adapter.Error", err)
	}
	if aerr.Kind != want {
		t.Errorf("Kind = %v, want %v", aerr.Kind, want)
	}
}
