package portal

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// dataPage mimics the structure of the portal's account view: a #left column
// with contract details and a #right column with the readings table.
const dataPage = `<!DOCTYPE html>
<html><body>
<select name="meterSelectF">
  <option value="101">Licznik 12345678 (dom)</option>
  <option value="102">Licznik 87654321 (garaż)</option>
</select>
<div id="left">
  <div>
    <div>Licznik</div>
    <b>12345678</b>
  </div>
  <div><span><b>Numer PPE</b></span> PL0037700001234567 </div>
  <div><span><b>Sprzedawca</b></span> ENERGA-OBRÓT SA </div>
  <div><span><b>Typ</b></span> Komfortowy </div>
  <div><span><b>Okres umowy</b></span> na czas nieokreślony </div>
  <div><span><b>Taryfa</b></span><span>G11</span></div>
  <div><span><b>Adres PPE</b></span><div>ul. Testowa 1, Gdańsk</div></div>
</div>
<div id="right">
  <table>
    <tr>
      <td class="first"><div>A+ energia pobrana</div><div>2024-06-08 00:00</div></td>
      <td class="last"><span>1 234,5</span></td>
    </tr>
    <tr>
      <td class="first"><div>A- energia oddana</div><div>2024-06-08 00:00</div></td>
      <td class="last"><span>17,25</span></td>
    </tr>
  </table>
</div>
</body></html>`

const loginPage = `<!DOCTYPE html>
<html><body>
<form id="loginForm" action="/dp/UserLogin.do">
  <input type="hidden" name="_antixsrf" value="token-123"/>
  <input name="j_username"/><input name="j_password" type="password"/>
</form>
</body></html>`

func parseFixture(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return doc
}

func TestPageClassification(t *testing.T) {
	login := parseFixture(t, loginPage)
	data := parseFixture(t, dataPage)

	if isLoggedIn(login) {
		t.Error("login page classified as logged in")
	}
	if !isLoggedIn(data) {
		t.Error("data page classified as logged out")
	}
	if got := xsrfToken(login); got != "token-123" {
		t.Errorf("xsrfToken = %q, want token-123", got)
	}
	if isCaptchaShown(login) {
		t.Error("captcha reported on a page without one")
	}

	captcha := parseFixture(t, `<html><body><form id="loginForm"><img name="captcha" src="c.png"/></form></body></html>`)
	if !isCaptchaShown(captcha) {
		t.Error("captcha image not detected")
	}
}

func TestScrapeMeters(t *testing.T) {
	doc := parseFixture(t, dataPage)

	meters := scrapeMeters(doc)
	if len(meters) != 2 {
		t.Fatalf("got %d meters, want 2", len(meters))
	}
	if meters[0].ID != "101" || meters[0].Description != "Licznik 12345678 (dom)" {
		t.Errorf("first meter = %+v", meters[0])
	}
	if got := scrapeMeterID(doc, "87654321"); got != "102" {
		t.Errorf("scrapeMeterID = %q, want 102", got)
	}
}

func TestScrapeSummary(t *testing.T) {
	doc := parseFixture(t, dataPage)

	s := scrapeSummary(doc)
	if s.MeterNumber != "12345678" {
		t.Errorf("MeterNumber = %q", s.MeterNumber)
	}
	if s.MeterID != "101" {
		t.Errorf("MeterID = %q, want 101", s.MeterID)
	}
	if s.PPENumber != "PL0037700001234567" {
		t.Errorf("PPENumber = %q", s.PPENumber)
	}
	if s.Seller != "ENERGA-OBRÓT SA" {
		t.Errorf("Seller = %q", s.Seller)
	}
	if s.Tariff != "G11" {
		t.Errorf("Tariff = %q", s.Tariff)
	}
	if s.PPEAddress != "ul. Testowa 1, Gdańsk" {
		t.Errorf("PPEAddress = %q", s.PPEAddress)
	}
	if s.ContractPeriod != "na czas nieokreślony" {
		t.Errorf("ContractPeriod = %q", s.ContractPeriod)
	}
}

func TestScrapeReadings(t *testing.T) {
	doc := parseFixture(t, dataPage)

	readings := scrapeReadings(doc)
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	first := readings[0]
	if first.Name != "A+ energia pobrana" {
		t.Errorf("Name = %q", first.Name)
	}
	// The portal renders values with a comma separator and space grouping.
	if first.Value != 1234.5 {
		t.Errorf("Value = %v, want 1234.5", first.Value)
	}
	if got := first.Taken.Format(readingTimeLayout); got != "2024-06-08 00:00" {
		t.Errorf("Taken = %q", got)
	}
	if readings[1].Value != 17.25 {
		t.Errorf("second Value = %v, want 17.25", readings[1].Value)
	}
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"17,25", 17.25, true},
		{"1 234,5", 1234.5, true},
		{"42", 42, true},
		{"", 0, false},
		{"brak", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseDecimal(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseDecimal(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
