package main

// ccmsweep runs a CCM calibration over a range of sensor gains, at one
// illuminant's white balance, and prints what would be programmed into
// the hardware at each step. Handy for eyeballing saturation curves
// and damping.
//
//   ccmsweep -calib ccm.yaml -illu D65 -gains 1,2,4,8,16 -frames 5

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/ispfuse/pkg/calib"
	"github.com/abworrall/ispfuse/pkg/ccm"
)

var (
	fVerbosity int
	fCalib     string
	fAttrib    string
	fIllu      string
	fWb        string
	fGains     string
	fFrames    int
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fCalib, "calib", "ccm.yaml", "CCM calibration file")
	flag.StringVar(&fAttrib, "attrib", "", "yaml file of CCM attributes (mode, saturation levels, manual matrix)")
	flag.StringVar(&fIllu, "illu", "", "use this illuminant's awb gain (default: the calibration's default illuminant)")
	flag.StringVar(&fWb, "wb", "", "awb gain as 'r,b'; overrides -illu")
	flag.StringVar(&fGains, "gains", "1,2,4,8,16,32", "comma separated sensor gains to sweep")
	flag.IntVar(&fFrames, "frames", 1, "frames to run at each gain; more than one shows the damping")
	flag.Parse()

	log.Printf("ccmsweep starting\n")
}

// A Step is one line of output
type Step struct {
	SensorGain float64      `yaml:"sensor_gain"`
	AwbGain    [2]float64   `yaml:"awb_gain"`
	Frame      int          `yaml:"frame"`
	State      string       `yaml:"state"`
	ReCal      bool         `yaml:"recal"`
	Report     ccm.Report   `yaml:"report"`
	Hw         ccm.HwConfig `yaml:"hw"`
}

func parseFloats(s string) ([]float64, error) {
	out := []float64{}
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("parse '%s': %v", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func loadAttrib(filename string, sel *ccm.Selector) error {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read '%s': %v", filename, err)
	}
	attr := sel.Attrib()
	if err := yaml.Unmarshal(contents, &attr); err != nil {
		return fmt.Errorf("parse '%s': %v", filename, err)
	}
	return sel.SetAttrib(attr)
}

func main() {
	cal, err := calib.Load(fCalib)
	if err != nil {
		log.Fatal(err)
	}

	sel, err := ccm.New(cal)
	if err != nil {
		log.Fatal(err)
	}
	sel.Verbosity = fVerbosity

	if fAttrib != "" {
		if err := loadAttrib(fAttrib, sel); err != nil {
			log.Fatal(err)
		}
	}

	gains, err := parseFloats(fGains)
	if err != nil {
		log.Fatal(err)
	}

	var wb [2]float64
	if fWb != "" {
		v, err := parseFloats(fWb)
		if err != nil || len(v) != 2 {
			log.Fatalf("-wb wants 'r,b', not '%s'", fWb)
		}
		wb = [2]float64{v[0], v[1]}
	} else {
		name := fIllu
		if name == "" {
			name = cal.IlluEst.DefaultIllu
		}
		idx := cal.IlluminantIndex(name)
		if idx < 0 {
			log.Fatalf("no illuminant '%s' in %s", name, fCalib)
		}
		wb = cal.Illuminants[idx].AwbGain
	}

	steps := []Step{}
	for _, g := range gains {
		for i := 0; i < fFrames; i++ {
			hw, err := sel.Process(ccm.Input{SensorGain: g, AwbGain: wb}).Unwrap()
			if err != nil {
				log.Fatalf("gain %.2f: %v", g, err)
			}
			steps = append(steps, Step{
				SensorGain: g,
				AwbGain:    wb,
				Frame:      i,
				State:      sel.State().String(),
				ReCal:      sel.IsReCal(),
				Report:     sel.Report(),
				Hw:         hw,
			})
		}
	}

	b, err := yaml.Marshal(steps)
	if err != nil {
		log.Fatalf("Can't marshal sweep yaml: %v\n", err)
	}
	fmt.Print(string(b))
}
