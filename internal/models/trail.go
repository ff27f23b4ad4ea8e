package models

// SoilCategory is the normalized soil class used by the mud curves.
type SoilCategory string

const (
	SoilHeavyClay  SoilCategory = "heavy_clay"
	SoilClaySilt   SoilCategory = "clay_silt"
	SoilClay       SoilCategory = "clay"
	SoilLoam       SoilCategory = "loam"
	SoilSandyLoam  SoilCategory = "sandy_loam"
	SoilSand       SoilCategory = "sand"
	SoilDesert     SoilCategory = "desert"
	SoilChalk      SoilCategory = "chalk"
	SoilTerraRossa SoilCategory = "terra_rossa"
	SoilMixed      SoilCategory = "mixed"
)

type Trail struct {
	ID          string       `json:"id" yaml:"id" validate:"required"`
	Name        string       `json:"name" yaml:"name" validate:"required"`
	Lat         float64      `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng         float64      `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
	LengthKm    float64      `json:"length_km" yaml:"length_km" validate:"gte=0"`
	Difficulty  string       `json:"difficulty" yaml:"difficulty"`
	SoilType    string       `json:"soil_type" yaml:"soil_type" validate:"required"`
	Soil        SoilCategory `json:"soil_category" yaml:"-"`
	MudIndex    string       `json:"mud_index" yaml:"mud_index"`
	RockType    string       `json:"rock_type" yaml:"rock_type"`
	Area        string       `json:"area" yaml:"area"`
	Region      string       `json:"region" yaml:"region"`
	Description string       `json:"description" yaml:"description"`
}

type HomeLocation struct {
	Name string  `json:"name" yaml:"name" validate:"required"`
	Lat  float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng  float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// GridKey identifies a coarse spatial cell shared by nearby trails.
type GridKey string

type TrailGroup struct {
	Key            GridKey
	Representative Trail
	Trails         []Trail
}
