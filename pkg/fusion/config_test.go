package fusion

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/result"
)

const testYaml = `
hardware: v32lite
isp:
  left:  {x: 0,    y: 0, w: 2064, h: 3000}
  right: {x: 1936, y: 0, w: 2064, h: 3000}
awb:      {h_offs: 0, v_offs: 0, h_size: 4000, v_size: 3000}
afa:      {h_offs: 1000, v_offs: 750, h_size: 2000, v_size: 1500}
swapmode: m_lite
channelsel: g
bls:
  oboffset: 64
  bls1enable: true
  bls1: {r: 256, gr: 256, gb: 256, b: 256}
`

func TestLoadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "fusion.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(testYaml), 0644))

	c, err := LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "v32lite", c.Hardware)
	assert.Equal(t, "m_lite", c.SwapMode)
	assert.Equal(t, "g", c.ChannelSel)
	assert.Equal(t, 128, c.Isp.Overlap())
	assert.Equal(t, int64(256), c.Bls.Bls1.Gb)
	assert.Equal(t, 5, c.HistModeBig, "default kept")
	assert.Len(t, c.LiteWeight, 25)
	assert.Equal(t, uint8(1), c.BigWeight[100])

	// AWB windows as each ISP sees them
	assert.Equal(t, 2064, c.AwbLeft.HSize)
	assert.Equal(t, 0, c.AwbRight.HOffs)

	e, err := NewEngine(c)
	require.NoError(t, err)
	assert.Equal(t, 5, e.Decoder().AfGrid())
	assert.Equal(t, geom.Split, e.AfPlan().Side)

	// And it round trips
	c2 := NewConfig()
	require.NoError(t, yamlUnmarshal(c.AsYaml(), &c2))
	require.NoError(t, c2.Validate())
	assert.Equal(t, c, c2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	for name, mutate := range map[string]func(c *Config){
		"hardware":    func(c *Config) { c.Hardware = "v99" },
		"swapmode":    func(c *Config) { c.SwapMode = "both" },
		"channelsel":  func(c *Config) { c.ChannelSel = "cmy" },
		"awbblkmode":  func(c *Config) { c.AwbBlkMode = "fancy" },
		"liteweights": func(c *Config) { c.LiteWeight = []uint8{1, 2, 3} },
		"isp":         func(c *Config) { c.Isp = geom.IspPair{} },
	} {
		c := testConfig()
		mutate(&c)
		err := c.Validate()
		assert.True(t, errors.Is(err, result.ErrConfig), "%s: %v", name, err)
	}
}

func yamlUnmarshal(s string, c *Config) error {
	return yaml.Unmarshal([]byte(s), c)
}
