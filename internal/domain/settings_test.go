package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetting_JSON(t *testing.T) {
	ds := DeviceSettings{
		EmergencyNumber:      Override("112"),
		AutoCallDelaySeconds: Override(0),
	}
	data, err := json.Marshal(ds)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"emergency_number": "112",
		"auto_call_emergency": null,
		"auto_call_delay_seconds": 0,
		"fall_detection_sensitivity": null
	}`, string(data))

	var back DeviceSettings
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, ds, back)
}

func TestSetting_Or(t *testing.T) {
	require.Equal(t, "119", Inherit[string]().Or("119"))
	require.Equal(t, "", Override("").Or("119"))

	v, ok := Override(false).Get()
	require.False(t, v)
	require.True(t, ok)
}

func TestDevice_TokenAndClone(t *testing.T) {
	d := &Device{DeviceID: "DEV_1", SensorSettings: map[string]any{DeviceTokenKey: "tok"}}
	require.Equal(t, "tok", d.Token())

	c := d.Clone()
	c.SensorSettings[DeviceTokenKey] = "other"
	require.Equal(t, "tok", d.Token())
	require.Equal(t, "", (&Device{}).Token())
}
