package services

import (
	"testing"
	"time"
)

func fixedOptions() NormalizeOptions {
	opts := DefaultNormalizeOptions()
	opts.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return opts
}

func TestParsePrice(t *testing.T) {
	opts := fixedOptions()

	tests := []struct {
		raw      string
		want     int64
		known    bool
		currency string
	}{
		{"AED 45,000", 45000, true, "AED"},
		{"65K AED", 65000, true, "AED"},
		{"$45K", 45000, true, "USD"},
		{"45.000 €", 45000, true, "EUR"},
		{"AED 1,234,567", 1234567, true, "AED"},
		{"1 200 000 AED", 1200000, true, "AED"},
		{"65 000AED", 65000, true, "AED"},
		{"65\u00a0000 AED", 65000, true, "AED"},
		{"AED 65\u202f000", 65000, true, "AED"},
		{"AED 1.5M", 1500000, true, "AED"},
		{"149,999.50 AED", 150000, true, "AED"},
		{"1.234,50 EUR", 1235, true, "EUR"},
		{"درهم 45,000", 45000, true, "AED"},
		{"89900", 89900, true, "AED"},
		{"Call for price", 0, false, "AED"},
		{"Contact seller", 0, false, "AED"},
		{"", 0, false, "AED"},
	}

	for _, tt := range tests {
		got := ParsePrice(tt.raw, opts)
		if got.Known() != tt.known {
			t.Errorf("ParsePrice(%q).Known() = %v; want %v", tt.raw, got.Known(), tt.known)
			continue
		}
		if tt.known && *got.Amount != tt.want {
			t.Errorf("ParsePrice(%q) = %d; want %d", tt.raw, *got.Amount, tt.want)
		}
		if got.Currency != tt.currency {
			t.Errorf("ParsePrice(%q).Currency = %q; want %q", tt.raw, got.Currency, tt.currency)
		}
		if got.Display != tt.raw {
			t.Errorf("ParsePrice(%q).Display = %q; want verbatim", tt.raw, got.Display)
		}
	}
}

func TestParsePriceDefaultCurrency(t *testing.T) {
	opts := fixedOptions()
	opts.DefaultCurrency = "SAR"
	if got := ParsePrice("120,000", opts); got.Currency != "SAR" {
		t.Errorf("Currency = %q; want SAR", got.Currency)
	}
}

func TestParseMileage(t *testing.T) {
	opts := fixedOptions()

	tests := []struct {
		raw   string
		want  int64
		known bool
	}{
		{"45,000 km", 45000, true},
		{"28K miles", 45061, true},
		{"12,500 mi", 20116, true},
		{"50,000 Kilometers", 50000, true},
		{"45km", 45, true},
		{"15K km", 15000, true},
		{"30,000", 30000, true},
		{"0 km", 0, true},
		{"45 000km", 45000, true},
		{"45\u00a0000km", 45000, true},
		{"45 000 km", 45000, true},
		{"45 0001 km", 45, true},
		{"45,000 km (28,000 mi)", 45000, true},
		{"28,000 mi (45,000 km)", 45061, true},
		{"Mileage unknown", 0, false},
		{"N/A", 0, false},
		{"low", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got := ParseMileage(tt.raw, opts)
		if (got != nil) != tt.known {
			t.Errorf("ParseMileage(%q) known = %v; want %v", tt.raw, got != nil, tt.known)
			continue
		}
		if tt.known && *got != tt.want {
			t.Errorf("ParseMileage(%q) = %d; want %d", tt.raw, *got, tt.want)
		}
	}
}

func TestParseMileageBareUnitPolicy(t *testing.T) {
	opts := fixedOptions()
	opts.BareMileageUnit = UnitMiles

	got := ParseMileage("30,000", opts)
	if got == nil || *got != 48280 {
		t.Errorf("ParseMileage(30,000 bare miles) = %v; want 48280", got)
	}
	// An explicit unit always wins over the bare-number policy.
	got = ParseMileage("30,000 km", opts)
	if got == nil || *got != 30000 {
		t.Errorf("ParseMileage(30,000 km) = %v; want 30000", got)
	}
}

func TestExtractYear(t *testing.T) {
	opts := fixedOptions()

	tests := []struct {
		rawYear, title string
		want           int
		known          bool
	}{
		{"2022", "Tesla Model 3", 2022, true},
		{"2021.0", "", 2021, true},
		{"", "2021 Tesla Model Y Long Range", 2021, true},
		{"1985", "Tesla Model S 2019", 2019, true},
		{"", "Model Y 12345 2020", 2020, true},
		{"", "Tesla 3000 2021", 2021, true},
		{"", "Tesla Model 3 (7500 2022)", 2022, true},
		{"", "Tesla Model 3 2030", 0, false},
		{"", "Tesla Model 3 Performance", 0, false},
		{"abc", "", 0, false},
	}

	for _, tt := range tests {
		got := ExtractYear(tt.rawYear, tt.title, opts)
		if (got != nil) != tt.known {
			t.Errorf("ExtractYear(%q, %q) known = %v; want %v", tt.rawYear, tt.title, got != nil, tt.known)
			continue
		}
		if tt.known && *got != tt.want {
			t.Errorf("ExtractYear(%q, %q) = %d; want %d", tt.rawYear, tt.title, *got, tt.want)
		}
	}
}
