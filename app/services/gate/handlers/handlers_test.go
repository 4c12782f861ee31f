package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zephyr/powgate/app/services/gate/handlers"
	"github.com/zephyr/powgate/business/core/credential"
	"github.com/zephyr/powgate/business/core/gate"
	"github.com/zephyr/powgate/business/core/gateclient"
	"github.com/zephyr/powgate/business/core/issuer"
	"github.com/zephyr/powgate/business/web/errs"
	"github.com/zephyr/powgate/foundation/events"
	"github.com/zephyr/powgate/foundation/pow"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

type recorder struct {
	mu        sync.Mutex
	documents [][]byte
	failures  []error
}

func (r *recorder) Estimates(ests []pow.Estimate) {}
func (r *recorder) Progress(p pow.Progress)       {}
func (r *recorder) Solved(sol pow.Solution)       {}

func (r *recorder) Failed(err error, retryable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recorder) ReplaceDocument(doc []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = append(r.documents, doc)
}

func newServer(t *testing.T) (*httptest.Server, *events.Events) {
	log := zap.NewNop().Sugar()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %s", failed, err)
	}

	evts := events.New()
	iss, err := issuer.New(issuer.Config{
		PrivateKey:        pk,
		MinDifficulty:     1,
		MaxDifficulty:     3,
		DefaultDifficulty: 2,
		EvHandler:         evts.Send,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct an issuer: %s", failed, err)
	}

	mux := handlers.APIMux(handlers.MuxConfig{
		Log:    log,
		Issuer: iss,
		Evts:   evts,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, evts
}

func TestEndToEnd(t *testing.T) {
	srv, _ := newServer(t)
	store := credential.NewMemory()

	client, err := gateclient.New(gateclient.Config{BaseURL: srv.URL, Timeout: 5 * time.Second, Store: store})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a client: %s", failed, err)
	}

	newFlow := func(rec *recorder) *gate.Flow {
		return gate.NewFlow(gate.Config{
			Log:       zap.NewNop().Sugar(),
			API:       client,
			Store:     store,
			Presenter: rec,
			Benchmark: func(ctx context.Context) (float64, error) { return 1000, nil },
		})
	}

	t.Log("Given the need to pass the gate against the real service.")
	{
		ctx := context.Background()

		t.Logf("\tTest 0:\tWhen the client has no session.")
		{
			var rec recorder
			flow := newFlow(&rec)

			granted, err := flow.Start(ctx)
			if err != nil || granted {
				t.Fatalf("\t%s\tTest 0:\tShould need to solve the challenge: %v %v", failed, granted, err)
			}
			t.Logf("\t%s\tTest 0:\tShould need to solve the challenge.", success)

			outcome, err := flow.Run(ctx, 2)
			if err != nil || outcome.Result != gate.ResultGranted {
				t.Fatalf("\t%s\tTest 0:\tShould be granted access: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be granted access.", success)

			if _, ok := store.Load(time.Now()); !ok {
				t.Fatalf("\t%s\tTest 0:\tShould store the credential.", failed)
			}
			if len(rec.documents) != 1 || !strings.Contains(string(rec.documents[0]), gateclient.AccessMarker) {
				t.Fatalf("\t%s\tTest 0:\tShould navigate to the protected page.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould store the credential and navigate.", success)
		}

		t.Logf("\tTest 1:\tWhen the client returns with a session.")
		{
			var rec recorder
			flow := newFlow(&rec)

			granted, err := flow.Start(ctx)
			if err != nil || !granted {
				t.Fatalf("\t%s\tTest 1:\tShould take the fast path: %v %v", failed, granted, err)
			}
			if len(rec.documents) != 1 || !strings.Contains(string(rec.documents[0]), gateclient.AccessMarker) {
				t.Fatalf("\t%s\tTest 1:\tShould show the protected page.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould take the fast path.", success)
		}

		t.Logf("\tTest 2:\tWhen the client holds a forged session.")
		{
			store.Save(credential.New("forged.0x00", time.Now()))

			var rec recorder
			flow := newFlow(&rec)

			granted, err := flow.Start(ctx)
			if err != nil || granted {
				t.Fatalf("\t%s\tTest 2:\tShould fall back to the challenge: %v %v", failed, granted, err)
			}
			if len(rec.documents) != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould not replace the document.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould fall back to the challenge.", success)
		}
	}
}

func TestVerifyFailures(t *testing.T) {
	srv, _ := newServer(t)

	const unknown = `{"challenge":"abc","nonce":1,"difficulty":2,"challengeId":"x","processing_time":1,"hash_rate":1`

	tt := []struct {
		name   string
		body   string
		fields []string
	}{
		{name: "not-json", body: `nope`},
		{name: "missing-fields", body: `{"challenge":"abc"}`, fields: []string{"nonce", "difficulty", "challengeId"}},
		{name: "unknown-challenge", body: unknown + `}`},
		{name: "extra-field", body: unknown + `,"userAgent":"cli"}`},
	}

	t.Log("Given the need to refuse bad submissions.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				resp, err := http.Post(srv.URL+"/verify", "application/json", strings.NewReader(tst.body))
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to post: %s", failed, testID, err)
				}
				defer resp.Body.Close()

				if resp.StatusCode != http.StatusBadRequest {
					t.Fatalf("\t%s\tTest %d:\tShould get a bad request: %d", failed, testID, resp.StatusCode)
				}
				t.Logf("\t%s\tTest %d:\tShould get a bad request.", success, testID)

				var body struct {
					gateclient.VerifyResponse
					errs.Response
				}
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould get a JSON body: %s", failed, testID, err)
				}

				switch tst.name {
				case "not-json", "missing-fields":
					if body.Error == "" || body.Status != "" {
						t.Fatalf("\t%s\tTest %d:\tShould get an error response: %+v", failed, testID, body)
					}
					for _, field := range tst.fields {
						if _, exists := body.Fields[field]; !exists {
							t.Fatalf("\t%s\tTest %d:\tShould report field %q: %+v", failed, testID, field, body.Fields)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get an error response: %s", success, testID, body.Error)

				default:
					if body.Status != "failure" || body.Message != issuer.ErrUnknownChallenge.Error() || body.JWT != "" {
						t.Fatalf("\t%s\tTest %d:\tShould get the issuer's reason: %+v", failed, testID, body)
					}
					t.Logf("\t%s\tTest %d:\tShould get the issuer's reason: %s", success, testID, body.Message)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func TestChallengeClamp(t *testing.T) {
	srv, _ := newServer(t)

	for q, exp := range map[string]int{"1": 1, "3": 3, "9": 2, "abc": 2, "": 2} {
		resp, err := http.Get(srv.URL + "/challenge?difficulty=" + q)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to get a challenge: %s", failed, err)
		}

		var ch struct {
			Challenge   string `json:"challenge"`
			Difficulty  int    `json:"difficulty"`
			ChallengeID string `json:"challengeId"`
		}
		err = json.NewDecoder(resp.Body).Decode(&ch)
		resp.Body.Close()

		if err != nil || ch.Difficulty != exp || ch.Challenge == "" || ch.ChallengeID == "" {
			t.Fatalf("\t%s\tShould get difficulty %d for %q: %+v %v", failed, exp, q, ch, err)
		}
	}
	t.Logf("\t%s\tShould clamp the requested difficulty.", success)
}
