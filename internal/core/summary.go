package core

import "strings"

// Metric keys. Every key is always present in Metrics.Map.
const (
	MetricUsersTotal             = "users_total"
	MetricMonthlyLoggedInUsers   = "monthly_logged_in_users"
	MetricMonthlyActiveUsers     = "monthly_active_users"
	MetricProjectsPublic         = "projects_public"
	MetricProjectsPrivate        = "projects_private"
	MetricProjectsTotal          = "projects_total"
	MetricRegistrationsPublic    = "registrations_public"
	MetricRegistrationsEmbargoed = "registrations_embargoed"
	MetricRegistrationsTotal     = "registrations_total"
	MetricPreprintsTotal         = "preprints_total"
	MetricPublicFileCount        = "public_file_count"
	MetricStorageGB              = "storage_gb"
)

// MetricMode records where a metric value comes from.
type MetricMode string

const (
	// ModeAuthoritative values are read verbatim from the summary row. They are
	// never replaced by table counts: private and embargoed totals cannot be
	// reconstructed from a public-facing export.
	ModeAuthoritative MetricMode = "authoritative"

	// ModeDerived values are counted or summed over the entity tables.
	ModeDerived MetricMode = "derived"

	// ModeComposite values are sums of resolved authoritative metrics.
	ModeComposite MetricMode = "composite"
)

// Summary-row source fields for authoritative metrics.
var (
	usersTotalFields             = []string{"total_users", "users_total", "users_count"}
	monthlyLoggedInFields        = []string{"summary_monthly_logged_in_users"}
	monthlyActiveFields          = []string{"summary_monthly_active_users"}
	projectsPublicFields         = []string{"projects_public_count"}
	projectsPrivateFields        = []string{"projects_private_count"}
	registrationsPublicFields    = []string{"registrations_public_count"}
	registrationsEmbargoedFields = []string{"registrations_embargoed_count"}
)

// BytesPerGB converts storage_byte_count to gigabytes (decimal).
const BytesPerGB = 1e9

// Metrics holds the dashboard headline counters for one dataset.
type Metrics struct {
	UsersTotal             int64
	MonthlyLoggedInUsers   int64
	MonthlyActiveUsers     int64
	ProjectsPublic         int64
	ProjectsPrivate        int64
	ProjectsTotal          int64
	RegistrationsPublic    int64
	RegistrationsEmbargoed int64
	RegistrationsTotal     int64
	PreprintsTotal         int64
	PublicFileCount        int64
	StorageGB              float64

	// Table sizes, informational only. They are never substituted for the
	// authoritative counters above.
	UserRows         int
	ProjectRows      int
	RegistrationRows int

	HasSummary bool
}

// MetricValue is one labelled counter in display order.
type MetricValue struct {
	Key     string     `json:"key"`
	Label   string     `json:"label"`
	Mode    MetricMode `json:"mode"`
	Value   float64    `json:"value"`
	Display string     `json:"display"`
}

// authoritative reads the first non-empty field from the summary row.
// A missing row or field resolves to 0.
func authoritative(summary Row, fields []string) int64 {
	if summary == nil {
		return 0
	}
	for _, f := range fields {
		if v := strings.TrimSpace(summary[f]); v != "" {
			return ParseInt(v, 0)
		}
	}
	return 0
}

// rowStorageGB returns a row's storage in GB, falling back to
// storage_byte_count when storage_gb is empty or unparseable.
func rowStorageGB(row Row) float64 {
	if gb, ok := parseFloatOK(row[ColStorageGB]); ok {
		return gb
	}
	return ParseFloat(row[ColStorageBytes], 0) / BytesPerGB
}

// ComputeSummary resolves every metric according to its mode.
//
// Authoritative metrics come only from the summary row (0 when absent).
// Derived metrics come only from the tables, even when the summary row has a
// field of the same name. Composite metrics add resolved authoritative ones.
func ComputeSummary(summary Row, projects, registrations, preprints, users []Row) Metrics {
	m := Metrics{
		HasSummary: summary != nil,

		UsersTotal:             authoritative(summary, usersTotalFields),
		MonthlyLoggedInUsers:   authoritative(summary, monthlyLoggedInFields),
		MonthlyActiveUsers:     authoritative(summary, monthlyActiveFields),
		ProjectsPublic:         authoritative(summary, projectsPublicFields),
		ProjectsPrivate:        authoritative(summary, projectsPrivateFields),
		RegistrationsPublic:    authoritative(summary, registrationsPublicFields),
		RegistrationsEmbargoed: authoritative(summary, registrationsEmbargoedFields),

		PreprintsTotal: int64(len(preprints)),

		UserRows:         len(users),
		ProjectRows:      len(projects),
		RegistrationRows: len(registrations),
	}

	m.ProjectsTotal = m.ProjectsPublic + m.ProjectsPrivate
	m.RegistrationsTotal = m.RegistrationsPublic + m.RegistrationsEmbargoed

	for _, rows := range [][]Row{projects, registrations, preprints} {
		for _, row := range rows {
			m.PublicFileCount += ParseInt(row[ColPublicFileCount], 0)
			m.StorageGB += rowStorageGB(row)
		}
	}

	return m
}

// Summary computes metrics for the dataset.
func (d *Dataset) Summary() Metrics {
	return ComputeSummary(d.SummaryRow, d.Projects.rows(), d.Registrations.rows(), d.Preprints.rows(), d.Users.rows())
}

func (c *Collection) rows() []Row {
	if c == nil {
		return nil
	}
	return c.Rows
}

// Ordered returns the metrics in dashboard card order.
func (m Metrics) Ordered() []MetricValue {
	ints := func(key, label string, mode MetricMode, v int64) MetricValue {
		return MetricValue{Key: key, Label: label, Mode: mode, Value: float64(v), Display: HumanInt(v)}
	}
	return []MetricValue{
		ints(MetricUsersTotal, "Total Users", ModeAuthoritative, m.UsersTotal),
		ints(MetricMonthlyLoggedInUsers, "Monthly Logged-in Users", ModeAuthoritative, m.MonthlyLoggedInUsers),
		ints(MetricMonthlyActiveUsers, "Monthly Active Users", ModeAuthoritative, m.MonthlyActiveUsers),
		ints(MetricProjectsPublic, "OSF Public Projects", ModeAuthoritative, m.ProjectsPublic),
		ints(MetricProjectsPrivate, "OSF Private Projects", ModeAuthoritative, m.ProjectsPrivate),
		ints(MetricProjectsTotal, "OSF Public and Private Projects", ModeComposite, m.ProjectsTotal),
		ints(MetricRegistrationsPublic, "OSF Public Registrations", ModeAuthoritative, m.RegistrationsPublic),
		ints(MetricRegistrationsEmbargoed, "OSF Embargoed Registrations", ModeAuthoritative, m.RegistrationsEmbargoed),
		ints(MetricRegistrationsTotal, "OSF Registrations", ModeComposite, m.RegistrationsTotal),
		ints(MetricPreprintsTotal, "OSF Preprints", ModeDerived, m.PreprintsTotal),
		ints(MetricPublicFileCount, "Total Public File Count", ModeDerived, m.PublicFileCount),
		{Key: MetricStorageGB, Label: "Total Storage in GB", Mode: ModeDerived, Value: m.StorageGB, Display: HumanFloat(m.StorageGB, 1)},
	}
}

// Map returns the metrics as a flat key/value mapping with every key present.
func (m Metrics) Map() map[string]float64 {
	out := make(map[string]float64)
	for _, mv := range m.Ordered() {
		out[mv.Key] = mv.Value
	}
	return out
}
