package calib

import (
	"fmt"
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"
)

/* Example calibration file (see testdata/ccm.yaml for a complete one) ...

control: {enable: true, gain_tolerance: 0.2, wbgain_tolerance: 0.05}
damp_enable: true
iir_damp_coef: 0.6
illu_est:
  interp_enable: false
  default_illu: D50
  weight_rb: [1, 1]
  prob_limit: 0.2
  frame_no: 8
luma_ccm:
  rgb2y_para: [38, 75, 15]
  gain_alpha_scale:
    gain:  [1, 2, 4, 8, 16, 32, 64, 128, 256]
    scale: [1, 1, 1, 1, 0.9, 0.8, 0.7, 0.6, 0.5]
  ...
illuminants:
  - name: D50
    awb_gain: [1.55, 1.71]
    min_dist: 0.02
    matrix_used: [D50_100, D50_74]
    gain_sat_curve: {gains: [1, 2, 4, 8], sat: [100, 100, 90, 74]}
matrices:
  - name: D50_100
    illumination: D50
    saturation: 100
    matrix: [1.62, -0.45, -0.17, -0.24, 1.51, -0.27, 0.02, -0.61, 1.59]
    offsets: [0, 0, 0]

*/

// Load reads and finalizes a calibration file.
func Load(filename string) (*Calibration, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read '%s': %v", filename, err)
	}

	c, err := Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("calibration '%s': %w", filename, err)
	}
	return c, nil
}

func Parse(b []byte) (*Calibration, error) {
	c := &Calibration{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Calibration) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal calibration yaml: %v\n", err)
	}
	return string(b)
}
