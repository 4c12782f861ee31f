package powgrp

import (
	"bytes"
	"html/template"
	"strconv"
	"time"

	"github.com/zephyr/powgate/business/core/issuer"
	"github.com/zephyr/powgate/foundation/pow"
)

var challengePage = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html>
<head><title>Verifying your browser</title></head>
<body>
<h1>Verifying your browser</h1>
<p>Choose a difficulty and solve the proof of work challenge to continue.</p>
<ul>
{{- range .Tiers}}
<li><input type="radio" name="difficulty" value="{{.}}"> difficulty {{.}} ({{index $.Expected .}} hashes expected)</li>
{{- end}}
</ul>
</body>
</html>
`))

var grantedPage = template.Must(template.New("granted").Parse(`<!DOCTYPE html>
<html>
<head><title>Access Granted</title></head>
<body>
<h1>Access Granted</h1>
<dl>
<dt>Completed</dt><dd>{{.Completed}}</dd>
<dt>Difficulty</dt><dd>{{.Difficulty}}</dd>
<dt>Processing time</dt><dd>{{.ProcessingTime}}</dd>
<dt>Hash rate</dt><dd>{{.HashRate}}</dd>
</dl>
</body>
</html>
`))

// renderChallenge produces the page shown to a client without a session.
func renderChallenge(tiers []int) ([]byte, error) {
	expected := make(map[int]string, len(tiers))
	for _, d := range tiers {
		expected[d] = strconv.FormatFloat(pow.ExpectedHashes(d), 'f', 0, 64)
	}

	data := struct {
		Tiers    []int
		Expected map[int]string
	}{
		Tiers:    tiers,
		Expected: expected,
	}

	var buf bytes.Buffer
	if err := challengePage.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderGranted produces the protected page for a client with a session.
func renderGranted(claims issuer.Claims) ([]byte, error) {
	data := struct {
		Completed      string
		Difficulty     int
		ProcessingTime string
		HashRate       string
	}{
		Completed:      time.Unix(claims.IssuedAt, 0).UTC().Format("2006-01-02 15:04:05"),
		Difficulty:     claims.Difficulty(),
		ProcessingTime: pow.FormatElapsed(claims.ProcessingTime),
		HashRate:       pow.FormatRate(claims.HashRate * 1000),
	}

	var buf bytes.Buffer
	if err := grantedPage.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
