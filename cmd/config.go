/*package cmd wires the configuration to the pipeline stages and runs them
in order. The config carries every recognised key; path-valued keys use "0"
for "disabled", as the input format always did.*/
package cmd

import (
	"runtime"

	"github.com/mehdirezaie/flask/harmonic"
	"github.com/mehdirezaie/flask/parse"
	"github.com/mehdirezaie/flask/report"
)

// Dist selects the statistical model of the realizations.
type Dist int

const (
	Lognormal Dist = iota
	Gaussian
	Homogeneous
)

func (d Dist) String() string {
	switch d {
	case Lognormal:
		return "LOGNORMAL"
	case Gaussian:
		return "GAUSSIAN"
	case Homogeneous:
		return "HOMOGENEOUS"
	}
	panic("Impossible")
}

// Config is the full configuration of a run.
type Config struct {
	distName   string
	Dist       Dist
	FieldsInfo string
	ClPrefix   string
	LRange     []int64
	NSide      int64

	ScaleCls     float64
	WinFuncSigma float64
	ApplyPixWin  int64
	PixWinFile   string
	SuppressL    float64
	SupIndex     float64

	AllowMissCl  int64
	CropCl       int64
	ExtrapDipole int64

	BadCorrFrac float64
	MinDiagFrac float64
	RegMaxSteps int64

	RndSeed    int64
	NThreads   int64
	Dens2Kappa int64
	Poisson    int64
	ExitAt     string

	OmegaM     float64
	OmegaL     float64
	WDe        float64
	GalDensity float64

	SelecPrefix    string
	EllipSigma     float64
	CatalogOut     string
	CatalogCols    []string
	AngularCoord   int64
	UseHealpixWgts int64
	RingWeightFile string

	FListOut       string
	SmoothClPrefix string
	XiOutPrefix    string
	GXiOutPrefix   string
	GClOutPrefix   string
	CovLPrefix     string
	RegCovLPrefix  string
	RegClPrefix    string
	CholeskyPrefix string
	AuxAlmOut      string
	AuxMapOut      string
	MapOut         string
	RecovAlmOut    string
	RecovClsOut    string
	LRangeOut      []int64
	MMaxOut        int64
	Dens2KappaStat string
	ShearAlmPrefix string
	ShearMapOut    string
	MapWerOut      string
}

func (config *Config) vars() *parse.ConfigVars {
	vars := parse.NewConfigVars("flask")

	vars.String(&config.distName, "DIST", "LOGNORMAL")
	vars.String(&config.FieldsInfo, "FIELDS_INFO", "")
	vars.String(&config.ClPrefix, "CL_PREFIX", "")
	vars.Ints(&config.LRange, "LRANGE", []int64{1, 100})
	vars.Int(&config.NSide, "NSIDE", 64)

	vars.Float(&config.ScaleCls, "SCALE_CLS", 1)
	vars.Float(&config.WinFuncSigma, "WINFUNC_SIGMA", -1)
	vars.Int(&config.ApplyPixWin, "APPLY_PIXWIN", 0)
	vars.String(&config.PixWinFile, "PIXWIN_FILE", "0")
	vars.Float(&config.SuppressL, "SUPPRESS_L", -1)
	vars.Float(&config.SupIndex, "SUP_INDEX", -1)

	vars.Int(&config.AllowMissCl, "ALLOW_MISS_CL", 0)
	vars.Int(&config.CropCl, "CROP_CL", 0)
	vars.Int(&config.ExtrapDipole, "EXTRAP_DIPOLE", 0)

	vars.Float(&config.BadCorrFrac, "BADCORR_FRAC", 0)
	vars.Float(&config.MinDiagFrac, "MINDIAG_FRAC", 0)
	vars.Int(&config.RegMaxSteps, "REG_MAXSTEPS", 1000)

	vars.Int(&config.RndSeed, "RNDSEED", 42)
	vars.Int(&config.NThreads, "NTHREADS", 0)
	vars.Int(&config.Dens2Kappa, "DENS2KAPPA", 0)
	vars.Int(&config.Poisson, "POISSON", 1)
	vars.String(&config.ExitAt, "EXIT_AT", "0")

	vars.Float(&config.OmegaM, "OMEGA_m", 0.3)
	vars.Float(&config.OmegaL, "OMEGA_L", 0.7)
	vars.Float(&config.WDe, "W_de", -1)
	vars.Float(&config.GalDensity, "GALDENSITY", 1)

	vars.String(&config.SelecPrefix, "SELEC_PREFIX", "0")
	vars.Float(&config.EllipSigma, "ELLIP_SIGMA", 0)
	vars.String(&config.CatalogOut, "CATALOG_OUT", "0")
	vars.Strings(&config.CatalogCols, "CATALOG_COLS",
		[]string{"theta", "phi", "z", "galtype", "kappa", "gamma1",
			"gamma2", "ellip1", "ellip2", "pixel"})
	vars.Int(&config.AngularCoord, "ANGULAR_COORD", 0)
	vars.Int(&config.UseHealpixWgts, "USE_HEALPIX_WGTS", 0)
	vars.String(&config.RingWeightFile, "RINGWEIGHT_FILE", "0")

	vars.String(&config.FListOut, "FLIST_OUT", "0")
	vars.String(&config.SmoothClPrefix, "SMOOTH_CL_PREFIX", "0")
	vars.String(&config.XiOutPrefix, "XIOUT_PREFIX", "0")
	vars.String(&config.GXiOutPrefix, "GXIOUT_PREFIX", "0")
	vars.String(&config.GClOutPrefix, "GCLOUT_PREFIX", "0")
	vars.String(&config.CovLPrefix, "COVL_PREFIX", "0")
	vars.String(&config.RegCovLPrefix, "REG_COVL_PREFIX", "0")
	vars.String(&config.RegClPrefix, "REG_CL_PREFIX", "0")
	vars.String(&config.CholeskyPrefix, "CHOLESKY_PREFIX", "0")
	vars.String(&config.AuxAlmOut, "AUXALM_OUT", "0")
	vars.String(&config.AuxMapOut, "AUXMAP_OUT", "0")
	vars.String(&config.MapOut, "MAP_OUT", "0")
	vars.String(&config.RecovAlmOut, "RECOVALM_OUT", "0")
	vars.String(&config.RecovClsOut, "RECOVCLS_OUT", "0")
	vars.Ints(&config.LRangeOut, "LRANGE_OUT", []int64{0, 0})
	vars.Int(&config.MMaxOut, "MMAX_OUT", -1)
	vars.String(&config.Dens2KappaStat, "DENS2KAPPA_STAT", "0")
	vars.String(&config.ShearAlmPrefix, "SHEAR_ALM_PREFIX", "0")
	vars.String(&config.ShearMapOut, "SHEAR_MAP_OUT", "0")
	vars.String(&config.MapWerOut, "MAPWER_OUT", "0")

	return vars
}

// ReadConfig reads the config file and applies command-line overrides of
// the form "KEY: value". Validation diagnostics go through rep.
func (config *Config) ReadConfig(fname string, overrides []string,
	rep *report.Reporter) error {

	vars := config.vars()
	if err := parse.ReadConfig(fname, vars); err != nil {
		return report.Errorf(report.ConfigError, "%s", err.Error())
	}
	if len(overrides) > 0 {
		if err := parse.ReadOverrides(overrides, vars); err != nil {
			return report.Errorf(report.ConfigError, "%s", err.Error())
		}
	}
	return config.validate(vars, rep)
}

// Workers returns the worker count of the parallel regions: NTHREADS, or
// every CPU when unset, capped so the seed layout stays valid.
func (config *Config) Workers() int {
	w := int(config.NThreads)
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > harmonic.MaxWorkers {
		w = harmonic.MaxWorkers
	}
	return w
}

func (config *Config) validate(vars *parse.ConfigVars, rep *report.Reporter) error {
	switch config.distName {
	case "LOGNORMAL":
		config.Dist = Lognormal
	case "GAUSSIAN":
		config.Dist = Gaussian
	case "HOMOGENEOUS":
		config.Dist = Homogeneous
	default:
		return report.Errorf(report.ConfigError, "unknown DIST: %s",
			config.distName)
	}

	if config.FieldsInfo == "" {
		return report.Errorf(report.ConfigError,
			"the 'FIELDS_INFO' variable isn't set")
	}
	if config.Dist != Homogeneous && config.ClPrefix == "" {
		return report.Errorf(report.ConfigError,
			"the 'CL_PREFIX' variable isn't set")
	}

	if len(config.LRange) != 2 {
		return report.Errorf(report.ConfigError,
			"LRANGE expects two integers, got %d", len(config.LRange))
	}
	if config.LRange[0] > config.LRange[1] {
		return report.Errorf(report.ConfigError,
			"LRANGE set in the wrong order")
	}
	if config.LRange[0] < 1 {
		return report.Errorf(report.ConfigError,
			"LRANGE must start at 1 or above")
	}
	if len(config.LRangeOut) != 2 {
		return report.Errorf(report.ConfigError,
			"LRANGE_OUT expects two integers, got %d", len(config.LRangeOut))
	}
	if config.LRangeOut[0] == 0 && config.LRangeOut[1] == 0 {
		config.LRangeOut = append([]int64{}, config.LRange...)
	}
	if config.LRangeOut[0] > config.LRangeOut[1] {
		return report.Errorf(report.ConfigError,
			"LRANGE_OUT set in the wrong order")
	}

	if config.NSide < 1 {
		return report.Errorf(report.ConfigError,
			"NSIDE must be positive, got %d", config.NSide)
	}

	if config.CropCl != 0 && config.CropCl != 1 {
		rep.Warnf("unknown CROP_CL option %d, will assume CROP_CL=0",
			config.CropCl)
		config.CropCl = 0
	}
	if config.AngularCoord < 0 || config.AngularCoord > 2 {
		rep.Warnf("unknown ANGULAR_COORD option %d, will keep theta "+
			"& phi in radians", config.AngularCoord)
		config.AngularCoord = 0
	}
	if config.Poisson != 0 && config.Poisson != 1 {
		return report.Errorf(report.ConfigError, "unknown POISSON option: %d",
			config.Poisson)
	}
	if config.Dens2Kappa != 0 && config.Dens2Kappa != 1 {
		rep.Warnf("unknown DENS2KAPPA option: skipping density LoS " +
			"integration")
		config.Dens2Kappa = 0
	}
	if config.RegMaxSteps < 1 {
		return report.Errorf(report.ConfigError,
			"REG_MAXSTEPS must be at least 1")
	}

	// The parallel seed layout is a hard precondition, not a runtime
	// surprise.
	if err := harmonic.CheckLayout(config.RndSeed, config.Workers()); err != nil {
		return err
	}

	if config.ExitAt != "0" && !vars.IsKey(config.ExitAt) {
		rep.Warnf("EXIT_AT names the unknown output '%s'", config.ExitAt)
	}
	return nil
}
