package querybuilder

import "github.com/your-username/click-lite-discover/internal/models"

// Column types
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
)

// Columns is the catalog of queryable event columns, in display order
var Columns = []models.Column{
	{Name: "event_id", Type: TypeString},
	{Name: "project_id", Type: TypeNumber},
	{Name: "platform", Type: TypeString},
	{Name: "message", Type: TypeString},
	{Name: "primary_hash", Type: TypeString},
	{Name: "timestamp", Type: TypeDatetime},
	{Name: "received", Type: TypeDatetime},
	{Name: "user_id", Type: TypeString},
	{Name: "username", Type: TypeString},
	{Name: "email", Type: TypeString},
	{Name: "ip_address", Type: TypeString},
	{Name: "sdk_name", Type: TypeString},
	{Name: "sdk_version", Type: TypeString},
	{Name: "http_method", Type: TypeString},
	{Name: "http_referer", Type: TypeString},
	{Name: "os_build", Type: TypeString},
	{Name: "os_kernel_version", Type: TypeString},
	{Name: "device_name", Type: TypeString},
	{Name: "device_brand", Type: TypeString},
	{Name: "device_locale", Type: TypeString},
	{Name: "device_uuid", Type: TypeString},
	{Name: "device_model_id", Type: TypeString},
	{Name: "device_arch", Type: TypeString},
	{Name: "device_battery_level", Type: TypeNumber},
	{Name: "device_orientation", Type: TypeString},
	{Name: "device_simulator", Type: TypeBoolean},
	{Name: "device_online", Type: TypeBoolean},
	{Name: "device_charging", Type: TypeBoolean},
}

// ColumnNames returns the catalog column names in order
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// IsColumn reports whether name is a catalog column
func IsColumn(name string) bool {
	for _, c := range Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
