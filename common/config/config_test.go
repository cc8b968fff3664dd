package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "vigil", Password: "p@ss word", Database: "vigil", SSLMode: "disable"}
	assert.Equal(t, "postgres://vigil:p%40ss%20word@db:5432/vigil?sslmode=disable", c.GetDSN())
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	c := MQTTConfig{Broker: "tcp://localhost:1883", QoS: 1}

	t.Setenv("TEST_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("TEST_MQTT_QOS", "5")
	c.LoadFromEnv("TEST_MQTT")

	assert.Equal(t, "tcp://broker:1883", c.Broker)
	assert.Equal(t, byte(1), c.QoS, "out-of-range qos keeps the previous value")

	t.Setenv("TEST_MQTT_QOS", "0")
	c.LoadFromEnv("TEST_MQTT")
	assert.Equal(t, byte(0), c.QoS)
}

func TestRedisConfig_LoadFromEnv_InvalidDB(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379", DB: 2}
	t.Setenv("TEST_REDIS_DB", "not-a-number")
	c.LoadFromEnv("TEST_REDIS")
	assert.Equal(t, 2, c.DB)
}
