package sources

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// Mock pages are deterministic for a given (source, date range, page) so a
// replayed demo ingest produces identical canonical rows. The records flow
// through the same transform path as live upstream data.

var mockCommunities = []string{
	"Dubai Marina",
	"JVC",
	"Jumeirah Village Circle",
	"Downtown Dubai",
	"Business Bay",
	"Palm Jumeirah",
	"Jumeirah Lakes Towers",
	"Arabian Ranches",
	"Al Barsha",
	"Dubai Hills Estate",
}

func mockSeed(source string, req PageRequest) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d", source, req.From.Format("2006-01-02"), req.To.Format("2006-01-02"), req.Page)
	return int64(h.Sum64())
}

// mockPageWindow computes the slice of a synthetic result set covered by one
// page. The set is sized at two and a half pages so pagination and the
// has_more flag are exercised.
func mockPageWindow(req PageRequest) (start, count, total int) {
	total = req.PageSize*2 + req.PageSize/2
	start = (req.Page - 1) * req.PageSize
	if start >= total {
		return start, 0, total
	}
	count = total - start
	if count > req.PageSize {
		count = req.PageSize
	}
	return start, count, total
}

func mockDate(rng *rand.Rand, from, to time.Time) time.Time {
	days := int(to.Sub(from).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return from.AddDate(0, 0, rng.Intn(days))
}

func mockDLDPage(req PageRequest) dldPageEnvelope {
	rng := rand.New(rand.NewSource(mockSeed(models.SourceDLD, req)))
	start, count, total := mockPageWindow(req)

	records := make([]dldTransactionRecord, 0, count)
	for i := 0; i < count; i++ {
		seq := start + i
		rec := dldTransactionRecord{
			TransactionID: fmt.Sprintf("MOCK-DLD-%s-%05d", req.From.Format("20060102"), seq),
			InstanceDate:  mockDate(rng, req.From, req.To).Format("2006-01-02"),
			AreaNameEn:    mockCommunities[rng.Intn(len(mockCommunities))],
		}

		switch roll := rng.Intn(100); {
		case roll < 60:
			rec.PropertyTypeEn = "Unit"
			rec.RoomsEn = []string{"Studio", "1 B/R", "2 B/R", "3 B/R", "4 B/R"}[rng.Intn(5)]
			rec.ProcedureArea = 38 + rng.Float64()*180
			rec.ActualWorth = 500000 + rng.Float64()*3500000
		case roll < 85:
			rec.PropertyTypeEn = "Villa"
			rec.RoomsEn = fmt.Sprintf("%d B/R", 3+rng.Intn(3))
			rec.ProcedureArea = 180 + rng.Float64()*470
			rec.ActualWorth = 1800000 + rng.Float64()*8000000
		default:
			rec.PropertyTypeEn = "Land"
			rec.ProcedureArea = 500 + rng.Float64()*4500
			rec.ActualWorth = 2000000 + rng.Float64()*20000000
		}

		records = append(records, rec)
	}

	return dldPageEnvelope{
		Success: true,
		Data:    records,
		Total:   total,
		HasMore: start+count < total,
	}
}

func mockEjariPage(req PageRequest) ejariPageEnvelope {
	rng := rand.New(rand.NewSource(mockSeed(models.SourceEjari, req)))
	start, count, total := mockPageWindow(req)

	records := make([]ejariContractRecord, 0, count)
	for i := 0; i < count; i++ {
		seq := start + i
		rec := ejariContractRecord{
			ContractID:       fmt.Sprintf("MOCK-EJARI-%s-%05d", req.From.Format("20060102"), seq),
			RegistrationDate: mockDate(rng, req.From, req.To).Format("2006-01-02"),
			AreaNameEn:       mockCommunities[rng.Intn(len(mockCommunities))],
		}

		switch roll := rng.Intn(100); {
		case roll < 65:
			rec.PropertyTypeEn = "Apartment"
			beds := rng.Intn(4)
			rec.Bedrooms = &beds
			rec.PropertyArea = 40 + rng.Float64()*160
			rec.ContractAmount = 35000 + rng.Float64()*145000
		case roll < 85:
			rec.PropertyTypeEn = "Villa"
			beds := 3 + rng.Intn(3)
			rec.Bedrooms = &beds
			rec.PropertyArea = 200 + rng.Float64()*400
			rec.ContractAmount = 120000 + rng.Float64()*330000
		default:
			rec.PropertyTypeEn = "Office"
			rec.PropertyArea = 60 + rng.Float64()*500
			rec.ContractAmount = 80000 + rng.Float64()*320000
		}

		records = append(records, rec)
	}

	return ejariPageEnvelope{
		Success: true,
		Data:    records,
		Total:   total,
		HasMore: start+count < total,
	}
}

func mockPortalPage(portal string, req PageRequest) portalPageEnvelope {
	rng := rand.New(rand.NewSource(mockSeed(portal, req)))
	start, count, total := mockPageWindow(req)

	records := make([]portalListingRecord, 0, count)
	for i := 0; i < count; i++ {
		seq := start + i
		snapshot := mockDate(rng, req.From, req.To)
		listed := snapshot.AddDate(0, 0, -(5 + rng.Intn(175)))

		rec := portalListingRecord{
			ListingID:    fmt.Sprintf("MOCK-%s-%05d", strings.ToUpper(portal), seq),
			Community:    mockCommunities[rng.Intn(len(mockCommunities))],
			ListedAt:     listed.Format("2006-01-02"),
			SnapshotDate: snapshot.Format("2006-01-02"),
		}

		switch roll := rng.Intn(100); {
		case roll < 55:
			rec.PropertyType = "Apartment"
			beds := rng.Intn(4)
			rec.Bedrooms = &beds
			rec.AreaSqft = 420 + rng.Float64()*1800
			rec.Price = 500000 + rng.Float64()*3000000
		case roll < 80:
			rec.PropertyType = "Villa"
			beds := 3 + rng.Intn(3)
			rec.Bedrooms = &beds
			rec.AreaSqft = 2200 + rng.Float64()*4500
			rec.Price = 2200000 + rng.Float64()*9000000
		case roll < 92:
			rec.PropertyType = "Townhouse"
			beds := 2 + rng.Intn(3)
			rec.Bedrooms = &beds
			rec.AreaSqft = 1600 + rng.Float64()*1800
			rec.Price = 1500000 + rng.Float64()*2500000
		default:
			rec.PropertyType = "Office"
			rec.AreaSqft = 600 + rng.Float64()*4000
			rec.Price = 900000 + rng.Float64()*6000000
		}

		// Every sixth listing carries a discounted ask so price cut
		// handling always has material to work with.
		if seq%6 == 0 {
			original := rec.Price * 1.12
			rec.OriginalPrice = &original
		}

		records = append(records, rec)
	}

	return portalPageEnvelope{
		Success: true,
		Data:    records,
		Total:   total,
		HasMore: start+count < total,
	}
}
