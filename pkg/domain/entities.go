// Package domain defines the persistent field-program records, their value
// types, and the validation primitives shared by fieldmonitor.
package domain

// EntityType identifies the type of record stored in the store.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityActivity identifies a planned or delivered program activity.
	EntityActivity EntityType = "activity"
	// EntityBeneficiary identifies a registered participant.
	EntityBeneficiary EntityType = "beneficiary"
	// EntityBudgetLine identifies a budget category line.
	EntityBudgetLine EntityType = "budget_line"
	// EntityComplianceItem identifies a donor reporting requirement.
	EntityComplianceItem EntityType = "compliance_item"
	// EntityGISMetric identifies a dated GIS platform usage sample.
	EntityGISMetric       EntityType = "gis_metric"
	EntityGISLayer        EntityType = "gis_layer"
	EntityGISProvinceStat EntityType = "gis_province_stat"
)

// Persistence keys, one per entity collection. Values are part of the
// persisted layout and must not change.
const (
	KeyActivities       = "activities"
	KeyBeneficiaries    = "beneficiaries"
	KeyBudget           = "budget"
	KeyCompliance       = "compliance"
	KeyGISMetrics       = "gisMetrics"
	KeyGISLayers        = "gisLayers"
	KeyGISProvinceStats = "gisProvinceStats"
)

// CollectionKeys lists every persistence key in load order.
var CollectionKeys = []string{
	KeyActivities,
	KeyBeneficiaries,
	KeyBudget,
	KeyCompliance,
	KeyGISMetrics,
	KeyGISLayers,
	KeyGISProvinceStats,
}

// KeyFor returns the persistence key backing the entity type.
func KeyFor(entity EntityType) string {
	switch entity {
	case EntityActivity:
		return KeyActivities
	case EntityBeneficiary:
		return KeyBeneficiaries
	case EntityBudgetLine:
		return KeyBudget
	case EntityComplianceItem:
		return KeyCompliance
	case EntityGISMetric:
		return KeyGISMetrics
	case EntityGISLayer:
		return KeyGISLayers
	case EntityGISProvinceStat:
		return KeyGISProvinceStats
	default:
		return ""
	}
}

// Province enumerates the program's provinces.
type Province string

// Provinces covered by the program.
const (
	ProvinceMaputo      Province = "Maputo"
	ProvinceSofala      Province = "Sofala"
	ProvinceCaboDelgado Province = "Cabo Delgado"
	ProvinceNampula     Province = "Nampula"
	ProvinceGaza        Province = "Gaza"
	// DefaultProvince is applied to province stats recorded without one.
	DefaultProvince = ProvinceMaputo
)

// Provinces returns the canonical province ordering.
func Provinces() []Province {
	return []Province{ProvinceMaputo, ProvinceSofala, ProvinceCaboDelgado, ProvinceNampula, ProvinceGaza}
}

// ActivityStatus enumerates activity delivery states. Transitions are caller
// driven; any-to-any is permitted.
type ActivityStatus string

// Canonical activity statuses.
const (
	ActivityPlanned   ActivityStatus = "Planned"
	ActivityOngoing   ActivityStatus = "Ongoing"
	ActivityCompleted ActivityStatus = "Completed"
)

// Gender enumerates beneficiary gender values.
type Gender string

// Recognised genders.
const (
	GenderFemale    Gender = "Female"
	GenderMale      Gender = "Male"
	GenderNonBinary Gender = "Non-binary"
)

// Genders returns the declared genders in display order.
func Genders() []Gender {
	return []Gender{GenderFemale, GenderMale, GenderNonBinary}
}

// Role enumerates beneficiary roles.
type Role string

// Beneficiary roles.
const (
	RoleEnumerator   Role = "Enumerator"
	RolePeacebuilder Role = "Peacebuilder"
	RoleCivilSociety Role = "Civil Society"
	RoleGovernment   Role = "Government"
)

// DefaultAttendance is recorded for beneficiaries registered without an activity.
const DefaultAttendance = "N/A"

// ComplianceStatus enumerates donor requirement states.
type ComplianceStatus string

// Compliance statuses. "Delayed" is only ever set manually.
const (
	CompliancePending  ComplianceStatus = "Pending"
	ComplianceComplete ComplianceStatus = "Complete"
	ComplianceDelayed  ComplianceStatus = "Delayed"
)

// NextComplianceStatus advances a status one step around the
// Pending → Complete → Delayed → Pending cycle. Unknown values restart at Pending.
func NextComplianceStatus(current ComplianceStatus) ComplianceStatus {
	switch current {
	case CompliancePending:
		return ComplianceComplete
	case ComplianceComplete:
		return ComplianceDelayed
	default:
		return CompliancePending
	}
}

// LayerType enumerates GIS layer geometries.
type LayerType string

// GIS layer types.
const (
	LayerPointData LayerType = "Point Data"
	LayerPolygon   LayerType = "Polygon"
	LayerRaster    LayerType = "Raster"
	// DefaultLayerSource is applied to layers registered without a source.
	DefaultLayerSource = "Internal"
)

// Activity is a planned or delivered program activity.
type Activity struct {
	ID                   string         `json:"id" yaml:"id"`
	Name                 string         `json:"name" yaml:"name"`
	PlannedDate          string         `json:"plannedDate" yaml:"plannedDate"`
	ActualDate           string         `json:"actualDate,omitempty" yaml:"actualDate,omitempty"`
	Province             Province       `json:"province" yaml:"province"`
	Status               ActivityStatus `json:"status" yaml:"status"`
	CompletionPercentage int            `json:"completionPercentage" yaml:"completionPercentage"`
	Notes                string         `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Beneficiary is a registered program participant.
type Beneficiary struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Gender           Gender   `json:"gender" yaml:"gender"`
	Age              int      `json:"age" yaml:"age"`
	Province         Province `json:"province" yaml:"province"`
	Role             Role     `json:"role" yaml:"role"`
	ActivityAttended string   `json:"activityAttended" yaml:"activityAttended"`
}

// BudgetLine tracks planned and actual spend for one category. Amounts are in
// local currency; CADEquivalent is the derived base-currency actual.
type BudgetLine struct {
	ID            string  `json:"id" yaml:"id"`
	Category      string  `json:"category" yaml:"category"`
	PlannedAmount float64 `json:"plannedAmount" yaml:"plannedAmount"`
	ActualAmount  float64 `json:"actualAmount" yaml:"actualAmount"`
	CADEquivalent float64 `json:"cadEquivalent" yaml:"cadEquivalent"`
	CurrencyRate  float64 `json:"currencyRate" yaml:"currencyRate"`
}

// ComplianceItem is a donor reporting requirement with a due date.
type ComplianceItem struct {
	ID      string           `json:"id" yaml:"id"`
	Item    string           `json:"item" yaml:"item"`
	Status  ComplianceStatus `json:"status" yaml:"status"`
	DueDate string           `json:"dueDate" yaml:"dueDate"`
}

// GISMetric is one dated usage sample of the GIS platform.
type GISMetric struct {
	ID             string `json:"id" yaml:"id"`
	Date           string `json:"date" yaml:"date"`
	ActiveUsers    int    `json:"activeUsers" yaml:"activeUsers"`
	Sessions       int    `json:"sessions" yaml:"sessions"`
	LayersAccessed int    `json:"layersAccessed" yaml:"layersAccessed"`
	Downloads      int    `json:"downloads" yaml:"downloads"`
}

// GISLayer describes a published map layer.
type GISLayer struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Type        LayerType `json:"type" yaml:"type"`
	Source      string    `json:"source" yaml:"source"`
	AccessCount int       `json:"accessCount" yaml:"accessCount"`
}

// GISProvinceStat counts platform sessions for a province. Duplicates per
// province are permitted.
type GISProvinceStat struct {
	ID       string   `json:"id" yaml:"id"`
	Province Province `json:"province" yaml:"province"`
	Sessions int      `json:"sessions" yaml:"sessions"`
}

// Snapshot is a point-in-time copy of every collection. Consumers may freely
// mutate the slices they receive.
type Snapshot struct {
	Activities       []Activity        `json:"activities" yaml:"activities"`
	Beneficiaries    []Beneficiary     `json:"beneficiaries" yaml:"beneficiaries"`
	Budget           []BudgetLine      `json:"budget" yaml:"budget"`
	Compliance       []ComplianceItem  `json:"compliance" yaml:"compliance"`
	GISMetrics       []GISMetric       `json:"gisMetrics" yaml:"gisMetrics"`
	GISLayers        []GISLayer        `json:"gisLayers" yaml:"gisLayers"`
	GISProvinceStats []GISProvinceStat `json:"gisProvinceStats" yaml:"gisProvinceStats"`
}

// Change describes a mutation requested of, or applied by, the store. After
// carries the proposed record for creates and updates.
type Change struct {
	Entity EntityType
	Action Action
	ID     string
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
