package common

// Granule properties (footprints, manifests)
const (
	TagConceptID      = "concept-id"
	TagNativeID       = "native-id"
	TagProducerID     = "producer-granule-id"
	TagShortName      = "short-name"
	TagBeginDate      = "begin_date"
	TagEndDate        = "end_date"
	TagDataLinks      = "data_links"
	TagNumLinks       = "num_links"
	TagDataset        = "dataset"
	TagTile           = "tile"
	TagSensor         = "sensor"
	TagCloudCover     = "cloud_cover"
	TagDayNightFlag   = "day_night_flag"
	TagProductionDate = "production_date"
)

// MaxFootprintLinks is the number of data links kept in the footprint properties
const MaxFootprintLinks = 5
