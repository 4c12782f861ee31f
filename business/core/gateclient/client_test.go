package gateclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zephyr/powgate/business/core/credential"
	"github.com/zephyr/powgate/business/core/gateclient"
	"github.com/zephyr/powgate/foundation/pow"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newClient(t *testing.T, url string, store credential.Store) *gateclient.Client {
	c, err := gateclient.New(gateclient.Config{BaseURL: url, Timeout: time.Second, Store: store})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a client: %s", failed, err)
	}
	return c
}

func TestFetchChallenge(t *testing.T) {
	type table struct {
		name   string
		status int
		body   string
		err    error
	}

	tt := []table{
		{name: "ok", status: http.StatusOK, body: `{"challenge":"abc123","difficulty":4,"challengeId":"id-1"}`},
		{name: "no-difficulty", status: http.StatusOK, body: `{"challenge":"abc123","challengeId":"id-1"}`},
		{name: "missing-id", status: http.StatusOK, body: `{"challenge":"abc123"}`, err: gateclient.ErrMalformedResponse},
		{name: "not-json", status: http.StatusOK, body: `<html>`, err: gateclient.ErrMalformedResponse},
		{name: "server-error", status: http.StatusInternalServerError, body: `{}`, err: gateclient.ErrMalformedResponse},
		{name: "unsolvable-difficulty", status: http.StatusOK, body: `{"challenge":"abc123","difficulty":99,"challengeId":"id-1"}`, err: gateclient.ErrMalformedResponse},
	}

	t.Log("Given the need to fetch a challenge from the gate.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				var gotDifficulty string
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotDifficulty = r.URL.Query().Get("difficulty")
					w.WriteHeader(tst.status)
					fmt.Fprint(w, tst.body)
				}))
				defer srv.Close()

				c := newClient(t, srv.URL, nil)

				ch, err := c.FetchChallenge(context.Background(), 4)
				if tst.err != nil {
					if !errors.Is(err, tst.err) {
						t.Fatalf("\t%s\tTest %d:\tShould get back %v: %v", failed, testID, tst.err, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get back %v.", success, testID, tst.err)
					return
				}

				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to fetch: %s", failed, testID, err)
				}
				if gotDifficulty != "4" {
					t.Fatalf("\t%s\tTest %d:\tShould send the difficulty: %q", failed, testID, gotDifficulty)
				}
				exp := pow.Challenge{ID: "id-1", Text: "abc123", Difficulty: 4}
				if ch != exp {
					t.Logf("\t%s\tTest %d:\tgot: %+v", failed, testID, ch)
					t.Logf("\t%s\tTest %d:\texp: %+v", failed, testID, exp)
					t.Fatalf("\t%s\tTest %d:\tShould get back the challenge.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the challenge.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func TestSubmit(t *testing.T) {
	t.Log("Given the need to submit a solution to the gate.")
	{
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if got["nonce"].(float64) == 7 {
				fmt.Fprint(w, `{"status":"success","jwt":"tok"}`)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"status":"failure","message":"Invalid PoW solution."}`)
		}))
		defer srv.Close()

		c := newClient(t, srv.URL, nil)
		sol := pow.Solution{ChallengeID: "id-1", Challenge: "abc123", Nonce: 7, Difficulty: 1, ProcessingTime: 0.5, HashRateKps: 12}

		t.Logf("\tTest 0:\tWhen the solution is accepted.")
		{
			vr, err := c.Submit(context.Background(), sol)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit: %s", failed, err)
			}
			if !vr.Accepted() || vr.JWT != "tok" {
				t.Fatalf("\t%s\tTest 0:\tShould get back an accepted response: %+v", failed, vr)
			}
			t.Logf("\t%s\tTest 0:\tShould get back an accepted response.", success)

			for _, k := range []string{"challenge", "nonce", "difficulty", "challengeId", "processing_time", "hash_rate"} {
				if _, exists := got[k]; !exists {
					t.Fatalf("\t%s\tTest 0:\tShould send field %q.", failed, k)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould send every wire field.", success)
		}

		t.Logf("\tTest 1:\tWhen the solution is rejected.")
		{
			sol.Nonce = 8
			vr, err := c.Submit(context.Background(), sol)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould decode a rejection: %s", failed, err)
			}
			if vr.Accepted() || vr.Message != "Invalid PoW solution." {
				t.Fatalf("\t%s\tTest 1:\tShould get back the rejection: %+v", failed, vr)
			}
			t.Logf("\t%s\tTest 1:\tShould get back the rejection.", success)
		}
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url, nil)

	if _, err := c.FetchChallenge(context.Background(), 3); !errors.Is(err, gateclient.ErrNetwork) {
		t.Fatalf("\t%s\tShould get a network failure on fetch: %v", failed, err)
	}
	if _, err := c.Submit(context.Background(), pow.Solution{}); !errors.Is(err, gateclient.ErrNetwork) {
		t.Fatalf("\t%s\tShould get a network failure on submit: %v", failed, err)
	}
	if _, err := c.Probe(context.Background(), "/"); !errors.Is(err, gateclient.ErrNetwork) {
		t.Fatalf("\t%s\tShould get a network failure on probe: %v", failed, err)
	}
	t.Logf("\t%s\tShould get a network failure from every call.", success)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.FetchChallenge(ctx, 3); !errors.Is(err, context.Canceled) || gateclient.IsRetryable(err) {
		t.Fatalf("\t%s\tShould get a cancel error that isn't retryable: %v", failed, err)
	}
	t.Logf("\t%s\tShould get a cancel error that isn't retryable.", success)
}

func TestProbe(t *testing.T) {
	type table struct {
		name    string
		header  string
		body    string
		status  int
		granted bool
	}

	tt := []table{
		{name: "header", header: gateclient.AccessGranted, body: "<html></html>", status: http.StatusOK, granted: true},
		{name: "marker", body: "<html><head>" + gateclient.AccessMarker + "</head></html>", status: http.StatusOK, granted: true},
		{name: "challenge-page", body: "<html><head><title>Challenge</title></head></html>", status: http.StatusOK},
		{name: "error-status", body: gateclient.AccessMarker, status: http.StatusInternalServerError},
	}

	t.Log("Given the need to probe the protected page.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				var cookie string
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if c, err := r.Cookie(credential.Name); err == nil {
						cookie = c.Value
					}
					if tst.header != "" {
						w.Header().Set(gateclient.AccessHeader, tst.header)
					}
					w.WriteHeader(tst.status)
					fmt.Fprint(w, tst.body)
				}))
				defer srv.Close()

				store := credential.NewMemory()
				store.Save(credential.New("tok", time.Now()))

				c := newClient(t, srv.URL, store)

				pr, err := c.Probe(context.Background(), "/")
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to probe: %s", failed, testID, err)
				}
				if cookie != "tok" {
					t.Fatalf("\t%s\tTest %d:\tShould present the credential: %q", failed, testID, cookie)
				}
				t.Logf("\t%s\tTest %d:\tShould present the credential.", success, testID)

				if pr.Granted != tst.granted {
					t.Fatalf("\t%s\tTest %d:\tShould get granted %v.", failed, testID, tst.granted)
				}
				if string(pr.Body) != tst.body {
					t.Fatalf("\t%s\tTest %d:\tShould get back the body.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get granted %v.", success, testID, tst.granted)
			}

			t.Run(tst.name, f)
		}
	}
}
