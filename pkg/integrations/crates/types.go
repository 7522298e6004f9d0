package crates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matzehuels/consecrates/pkg/integrations"
)

// Meta is the pagination block of listing responses.
type Meta struct {
	Total    uint64  `json:"total"`
	NextPage *string `json:"next_page,omitempty"`
	PrevPage *string `json:"prev_page,omitempty"`
}

// CrateLinks holds API paths related to a crate.
type CrateLinks struct {
	OwnerTeam           string `json:"owner_team"`
	OwnerUser           string `json:"owner_user"`
	Owners              string `json:"owners"`
	ReverseDependencies string `json:"reverse_dependencies"`
	VersionDownloads    string `json:"version_downloads"`
	Versions            string `json:"versions,omitempty"`
}

// Crate is a package as listed by crates.io.
//
// Optional string fields are empty when the registry omits them or sends null.
type Crate struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	License         string     `json:"license,omitempty"`
	Documentation   string     `json:"documentation,omitempty"`
	Homepage        string     `json:"homepage,omitempty"`
	Repository      string     `json:"repository,omitempty"`
	Downloads       uint64     `json:"downloads"`
	RecentDownloads *uint64    `json:"recent_downloads,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	Versions        []uint64   `json:"versions,omitempty"`
	MaxVersion      string     `json:"max_version"`
	MaxStable       string     `json:"max_stable_version,omitempty"`
	Links           CrateLinks `json:"links"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ExactMatch      *bool      `json:"exact_match,omitempty"`
}

// Crates is one page of a crate search.
type Crates struct {
	Crates []Crate `json:"crates"`
	Meta   Meta    `json:"meta"`
}

// VersionLinks holds API paths related to a version.
type VersionLinks struct {
	Authors          string `json:"authors"`
	Dependencies     string `json:"dependencies"`
	VersionDownloads string `json:"version_downloads"`
}

// Version is a single published version of a crate.
type Version struct {
	Crate       string              `json:"crate"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DLPath      string              `json:"dl_path"`
	Downloads   uint64              `json:"downloads"`
	Features    map[string][]string `json:"features"`
	ID          uint64              `json:"id"`
	Num         string              `json:"num"`
	Yanked      bool                `json:"yanked"`
	License     string              `json:"license,omitempty"`
	ReadmePath  string              `json:"readme_path,omitempty"`
	Links       VersionLinks        `json:"links"`
	CrateSize   *uint64             `json:"crate_size,omitempty"`
	PublishedBy *User               `json:"published_by,omitempty"`
}

// Category is a crates.io category.
type Category struct {
	Category      string     `json:"category"`
	CratesCnt     uint64     `json:"crates_cnt"`
	CreatedAt     time.Time  `json:"created_at"`
	Description   string     `json:"description"`
	ID            string     `json:"id"`
	Slug          string     `json:"slug"`
	Subcategories []Category `json:"subcategories,omitempty"`
}

// Keyword is a crates.io keyword.
type Keyword struct {
	ID        string    `json:"id"`
	Keyword   string    `json:"keyword"`
	CratesCnt uint64    `json:"crates_cnt"`
	CreatedAt time.Time `json:"created_at"`
}

// CrateResponse is the full record of a single crate.
type CrateResponse struct {
	Categories []Category `json:"categories"`
	Crate      Crate      `json:"crate"`
	Keywords   []Keyword  `json:"keywords"`
	Versions   []Version  `json:"versions"`
}

// Latest returns the version matching Crate.MaxVersion, if listed.
func (r *CrateResponse) Latest() (Version, bool) {
	for _, v := range r.Versions {
		if v.Num == r.Crate.MaxVersion {
			return v, true
		}
	}
	return Version{}, false
}

// Summary is the registry front page.
type Summary struct {
	JustUpdated            []Crate    `json:"just_updated"`
	MostDownloaded         []Crate    `json:"most_downloaded"`
	NewCrates              []Crate    `json:"new_crates"`
	MostRecentlyDownloaded []Crate    `json:"most_recently_downloaded"`
	NumCrates              uint64     `json:"num_crates"`
	NumDownloads           uint64     `json:"num_downloads"`
	PopularCategories      []Category `json:"popular_categories"`
	PopularKeywords        []Keyword  `json:"popular_keywords"`
}

// VersionDownloads is the download count of one version on one day.
type VersionDownloads struct {
	Date      Date   `json:"date"`
	Downloads uint64 `json:"downloads"`
	Version   uint64 `json:"version"`
}

// ExtraDownloads counts downloads of versions not listed individually.
type ExtraDownloads struct {
	Date      Date   `json:"date"`
	Downloads uint64 `json:"downloads"`
}

// DownloadsMeta holds the downloads not attributed to a listed version.
type DownloadsMeta struct {
	ExtraDownloads []ExtraDownloads `json:"extra_downloads"`
}

// Downloads is the recent daily download history of a crate.
type Downloads struct {
	VersionDownloads []VersionDownloads `json:"version_downloads"`
	Meta             DownloadsMeta      `json:"meta"`
}

// ByDate sums all downloads per day, including extra downloads.
func (d *Downloads) ByDate() map[Date]uint64 {
	out := make(map[Date]uint64)
	for _, v := range d.VersionDownloads {
		out[v.Date] += v.Downloads
	}
	for _, e := range d.Meta.ExtraDownloads {
		out[e.Date] += e.Downloads
	}
	return out
}

// User is a crates.io account.
type User struct {
	Avatar string `json:"avatar,omitempty"`
	Email  string `json:"email,omitempty"`
	ID     uint64 `json:"id"`
	Kind   string `json:"kind,omitempty"`
	Login  string `json:"login"`
	Name   string `json:"name,omitempty"`
	URL    string `json:"url"`
}

// Authors lists the authors of a version: free-form names from the manifest
// and the accounts that published it.
type Authors struct {
	Names []string
	Users []User
}

type authorsResponse struct {
	Meta struct {
		Names []string `json:"names"`
	} `json:"meta"`
	Users []User `json:"users"`
}

// Owners lists the owners of a crate.
type Owners struct {
	Users []User `json:"users"`
}

// Dependency is one dependency edge of a version.
type Dependency struct {
	CrateID         string   `json:"crate_id"`
	DefaultFeatures bool     `json:"default_features"`
	Downloads       uint64   `json:"downloads"`
	Features        []string `json:"features"`
	ID              uint64   `json:"id"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	Req             string   `json:"req"`
	Target          string   `json:"target,omitempty"`
	VersionID       uint64   `json:"version_id"`
}

// Normal reports whether d is a required, non-dev, non-build dependency.
func (d Dependency) Normal() bool {
	return d.Kind == "normal" && !d.Optional
}

// Dependencies lists the dependencies of a version.
type Dependencies struct {
	Dependencies []Dependency `json:"dependencies"`
}

// ReverseDependencies is one page of crates depending on a crate.
// Each dependency's VersionID refers to an entry of Versions, the dependent
// version.
type ReverseDependencies struct {
	Dependencies []Dependency `json:"dependencies"`
	Versions     []Version    `json:"versions"`
	Meta         Meta         `json:"meta"`
}

// Dependents returns the dependent crate names in listing order.
func (r *ReverseDependencies) Dependents() []string {
	byID := make(map[uint64]string, len(r.Versions))
	for _, v := range r.Versions {
		byID[v.ID] = v.Crate
	}
	names := make([]string, 0, len(r.Dependencies))
	for _, d := range r.Dependencies {
		if name, ok := byID[d.VersionID]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Categories is one page of the category listing.
type Categories struct {
	Categories []Category `json:"categories"`
	Meta       Meta       `json:"meta"`
}

// Keywords is one page of the keyword listing.
type Keywords struct {
	Keywords []Keyword `json:"keywords"`
	Meta     Meta      `json:"meta"`
}

type versionResponse struct {
	Version Version `json:"version"`
}

type categoryResponse struct {
	Category Category `json:"category"`
}

type keywordResponse struct {
	Keyword Keyword `json:"keyword"`
}

// dateLayout is the calendar-date format used by the downloads endpoint.
const dateLayout = "2006-01-02"

// Date is a calendar day without time of day, encoded as "2006-01-02".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses s as a "2006-01-02" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// DateOf returns the day t falls on in its location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// RequiredKeys methods list what the decoder must find before a body is
// accepted as the type; see [integrations.Shape].

func (CrateResponse) RequiredKeys() []string {
	return []string{"crate", "crate.id", "crate.name", "crate.max_version", "versions"}
}

func (Crates) RequiredKeys() []string { return []string{"crates", "meta"} }
func (versionResponse) RequiredKeys() []string { return []string{"version", "version.crate", "version.num"} }
func (Dependencies) RequiredKeys() []string { return []string{"dependencies"} }
func (Owners) RequiredKeys() []string { return []string{"users"} }
func (authorsResponse) RequiredKeys() []string { return []string{"meta", "users"} }
func (Downloads) RequiredKeys() []string { return []string{"version_downloads", "meta"} }
func (Summary) RequiredKeys() []string { return []string{"num_crates", "num_downloads"} }
func (categoryResponse) RequiredKeys() []string { return []string{"category", "category.slug"} }
func (keywordResponse) RequiredKeys() []string { return []string{"keyword", "keyword.id"} }
func (Categories) RequiredKeys() []string { return []string{"categories", "meta"} }
func (Keywords) RequiredKeys() []string { return []string{"keywords", "meta"} }
func (ReverseDependencies) RequiredKeys() []string { return []string{"dependencies", "versions", "meta"} }

var _ integrations.Shape = CrateResponse{}
