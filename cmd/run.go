package cmd

import (
	"fmt"
	"os"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/mehdirezaie/flask/cosmo"
	"github.com/mehdirezaie/flask/cov"
	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/harmonic"
	"github.com/mehdirezaie/flask/healpix"
	"github.com/mehdirezaie/flask/maps"
	"github.com/mehdirezaie/flask/math/dlt"
	"github.com/mehdirezaie/flask/obs"
	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/spectra"
	"github.com/mehdirezaie/flask/table"
)

// Run executes the whole pipeline for one configuration, reporting through
// rep. A nil return is either a completed run or a deliberate EXIT_AT stop.
func Run(config *Config, rep *report.Reporter) error {
	lmin, lmax := int(config.LRange[0]), int(config.LRange[1])
	workers := config.Workers()
	rep.Infof("running with %d workers, DIST=%s", workers, config.Dist)

	pix, err := healpix.New(int(config.NSide))
	if err != nil {
		return err
	}

	reg, err := fields.Load(config.FieldsInfo, config.Dist == Lognormal)
	if err != nil {
		return err
	}
	rep.Infof("FIELDS_INFO: %d fields, %d field names",
		reg.NFields(), len(reg.FNames()))

	var (
		tr   *dlt.Transform
		alms []*harmonic.Alm
		nls  int
	)

	// Homogeneous realizations skip everything up to the map stage: the
	// covariance and the coefficients would all be zero.
	if config.Dist != Homogeneous {
		set, err := spectra.Load(config.ClPrefix, reg, rep)
		if err != nil {
			return err
		}
		if config.AllowMissCl == 1 {
			rep.Infof("ALLOW_MISS_CL=1: will set totally missing C(l)s " +
				"to zero")
		}
		if enabled(config.FListOut) {
			if err := writeFieldList(config.FListOut, reg); err != nil {
				return err
			}
			rep.Infof(">> field list written to %s", config.FListOut)
		}
		if exitAt(config, rep, "FLIST_OUT") {
			return nil
		}

		// Spectrum filters, in the declared order.
		if config.ScaleCls != 1 {
			rep.Infof("re-scaling all C(l)s by SCALE_CLS=%g",
				config.ScaleCls)
			set.Rescale(config.ScaleCls)
		}
		if config.WinFuncSigma > 0 {
			rep.Infof("applying Gaussian window function to C(l)s")
			set.GaussianBeam(config.WinFuncSigma)
		}
		if config.ApplyPixWin == 1 {
			rep.Infof("applying pixel window function to C(l)s")
			wl, err := pixelWindow(config, rep)
			if err != nil {
				return err
			}
			if err := set.ApplyPixelWindow(wl, int(config.NSide)); err != nil {
				return err
			}
		}
		if config.SuppressL >= 0 && config.SupIndex >= 0 {
			rep.Infof("applying exponential suppression to C(l)s")
			set.Suppress(config.SuppressL, config.SupIndex)
		}
		if enabled(config.SmoothClPrefix) {
			if err := writeSpectra(config.SmoothClPrefix, set); err != nil {
				return err
			}
			rep.Infof(">> smoothed C(l)s written to %s",
				config.SmoothClPrefix)
		}
		if exitAt(config, rep, "SMOOTH_CL_PREFIX") {
			return nil
		}

		// Put every spectrum on the integer l grid [0, lastl].
		lastl := int(set.MaxCommonL())
		rep.Infof("maximum l in input C(l)s: %d", lastl)
		if lmax > lastl {
			return report.Errorf(report.InputError,
				"C(l)s provided are not specified up to the requested "+
					"LRANGE maximum %d", lmax)
		}
		if config.CropCl == 1 {
			lastl = lmax
		}
		rep.Infof("maximum l in transformation: %d", lastl)
		nls = lastl + 1
		if err := set.Resample(lastl, config.ExtrapDipole == 1); err != nil {
			return err
		}

		// Lognormal runs trade the input spectra for the spectra of the
		// associated Gaussian fields.
		if config.Dist == Lognormal {
			rep.Infof("LOGNORMAL realizations: computing auxiliary " +
				"gaussian C(l)s")
			tr = dlt.New(nls)
			hooks := spectra.Hooks{
				OnXi:  pairDump(config.XiOutPrefix, reg),
				OnGXi: pairDump(config.GXiOutPrefix, reg),
				OnGCl: pairDump(config.GClOutPrefix, reg),
			}
			if err := set.Gaussianize(tr, hooks); err != nil {
				return err
			}
		}
		if exitAt(config, rep, "XIOUT_PREFIX") || exitAt(config, rep, "GXIOUT_PREFIX") ||
			exitAt(config, rep, "GCLOUT_PREFIX") {
			return nil
		}

		// Covariance stack, validation, regularisation, factorisation.
		stack, err := cov.Assemble(set, nls, config.AllowMissCl == 1)
		if err != nil {
			return err
		}
		if enabled(config.CovLPrefix) {
			if err := writeCovStack(config.CovLPrefix, stack, lmin,
				lmax); err != nil {
				return err
			}
			rep.Infof(">> cov. matrices written to prefix %s",
				config.CovLPrefix)
		}
		if exitAt(config, rep, "COVL_PREFIX") {
			return nil
		}

		rep.Infof("verifying aux. cov. matrix properties")
		stack.Validate(rep, lmin, lmax, config.BadCorrFrac,
			config.MinDiagFrac)

		lstart, lend := lmin, lmax
		if config.Dist == Lognormal && enabled(config.RegClPrefix) {
			// Regularised output spectra need every multipole (l=0 stays
			// zero).
			lstart, lend = 1, nls-1
		}
		rep.Infof("regularizing cov. matrices for %d <= l <= %d",
			lstart, lend)
		maxFrac, err := stack.RegularizeRange(rep, lstart, lend,
			int(config.RegMaxSteps))
		if err != nil {
			return err
		}
		worstL, worst := lstart, 0.0
		for k, f := range maxFrac {
			if f > worst {
				worst, worstL = f, lstart+k
			}
		}
		rep.Infof("max. frac. change for %d<=l<=%d at l=%d: %g",
			lstart, lend, worstL, worst)
		if enabled(config.RegCovLPrefix) {
			if err := writeCovStack(config.RegCovLPrefix, stack, lstart,
				lend); err != nil {
				return err
			}
			rep.Infof(">> regularized cov. matrices written to prefix %s",
				config.RegCovLPrefix)
		}
		if exitAt(config, rep, "REG_COVL_PREFIX") {
			return nil
		}

		if enabled(config.RegClPrefix) {
			if err := writeRegularizedCls(config, reg, stack, tr, nls, rep); err != nil {
				return err
			}
			rep.Infof(">> regularized C(l)s written to %s",
				config.RegClPrefix)
		}
		if exitAt(config, rep, "REG_CL_PREFIX") {
			return nil
		}

		rep.Infof("performing Cholesky decompositions of cov. matrices")
		tri, err := stack.Factor(rep, lmin, lmax)
		if err != nil {
			return err
		}
		if enabled(config.CholeskyPrefix) {
			if err := writeTriangles(config.CholeskyPrefix, tri); err != nil {
				return err
			}
			rep.Infof(">> mixing matrices written to prefix %s",
				config.CholeskyPrefix)
		}
		if exitAt(config, rep, "CHOLESKY_PREFIX") {
			return nil
		}

		rep.Infof("generating auxiliary gaussian alm's")
		alms, err = harmonic.Draw(tri, reg.NFields(), config.RndSeed, workers)
		if err != nil {
			return err
		}
		if enabled(config.AuxAlmOut) {
			if err := writeAlms(config.AuxAlmOut, fieldNames(reg), alms); err != nil {
				return err
			}
			rep.Infof(">> auxiliary alm's written to %s", config.AuxAlmOut)
		}
		if exitAt(config, rep, "AUXALM_OUT") {
			return nil
		}
	} else {
		rep.Infof("HOMOGENEOUS realizations: skipped covariance and " +
			"alm preparation")
	}

	// Map synthesis.
	means := make([]float64, reg.NFields())
	for i := range means {
		means[i] = reg.Field(i).Mean
	}
	var ms [][]float64
	if config.Dist == Homogeneous {
		rep.Infof("HOMOGENEOUS realizations: filling maps with mean " +
			"values")
		ms = maps.Fill(pix.Npix(), means)
	} else {
		rep.Infof("generating maps from alm's")
		ms = maps.Synthesize(pix, alms)
	}
	if enabled(config.AuxMapOut) {
		if err := writeMaps(config.AuxMapOut, reg, pix, ms); err != nil {
			return err
		}
		rep.Infof(">> auxiliary maps written to %s", config.AuxMapOut)
	}
	if exitAt(config, rep, "AUXMAP_OUT") {
		return nil
	}

	switch config.Dist {
	case Lognormal:
		rep.Infof("LOGNORMAL realizations: exponentiating pixels")
		var g errgroup.Group
		for i := 0; i < reg.NFields(); i++ {
			f := reg.Field(i)
			m := ms[i]
			g.Go(func() error {
				maps.Exponentiate(m, f.Mean, f.Shift)
				return nil
			})
		}
		g.Wait()
	case Gaussian:
		rep.Infof("GAUSSIAN realizations: adding mean values to pixels")
		for i := 0; i < reg.NFields(); i++ {
			maps.AddMean(ms[i], means[i])
		}
	}

	// Optional line-of-sight integration of density into convergence; the
	// integrated fields augment the registry.
	if config.Dens2Kappa == 1 {
		rep.Infof("will perform LoS integration over density fields")
		c, err := cosmo.New(config.OmegaM, config.OmegaL, config.WDe)
		if err != nil {
			return err
		}
		extra, kmaps, err := maps.IntegrateDensity(rep, reg, c, ms)
		if err != nil {
			return err
		}
		if enabled(config.Dens2KappaStat) {
			all := append(append([][]float64{}, ms...), kmaps...)
			augmented, err := reg.Augment(extra)
			if err != nil {
				return err
			}
			only := func(i int) bool { return i >= reg.NFields() }
			if config.Dens2KappaStat == "1" {
				writeStats(os.Stdout, augmented, all,
					config.Dist == Lognormal, only)
			} else if err := statsToFile(config.Dens2KappaStat, augmented,
				all, config.Dist == Lognormal, only); err != nil {
				return err
			}
		}
		if exitAt(config, rep, "DENS2KAPPA_STAT") {
			return nil
		}
		if reg, err = reg.Augment(extra); err != nil {
			return err
		}
		ms = append(ms, kmaps...)
	}

	if enabled(config.MapOut) {
		if err := writeMaps(config.MapOut, reg, pix, ms); err != nil {
			return err
		}
		rep.Infof(">> final maps written to %s", config.MapOut)
	}
	if exitAt(config, rep, "MAP_OUT") {
		return nil
	}

	// Recover alm's and C(l)s from the final maps if requested.
	if enabled(config.RecovAlmOut) || enabled(config.RecovClsOut) {
		weights, err := ringWeights(config, rep)
		if err != nil {
			return err
		}
		rep.Infof("recovering alm's from maps")
		recov := make([]*harmonic.Alm, reg.NFields())
		var g errgroup.Group
		for i := range ms {
			i := i
			g.Go(func() error {
				var err error
				recov[i], err = pix.Map2Alm(ms[i], lmax, weights)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if enabled(config.RecovAlmOut) {
			if err := writeAlms(config.RecovAlmOut, fieldNames(reg), recov); err != nil {
				return err
			}
			rep.Infof(">> recovered alm's written to %s",
				config.RecovAlmOut)
		}
		if enabled(config.RecovClsOut) {
			lminOut, lmaxOut := outputLRange(config, rep, lmin, lmax)
			if err := writeRecovCls(config.RecovClsOut, reg, recov,
				lminOut, lmaxOut, int(config.MMaxOut)); err != nil {
				return err
			}
			rep.Infof(">> recovered C(l)s written to %s",
				config.RecovClsOut)
		}
	}
	if exitAt(config, rep, "RECOVALM_OUT") || exitAt(config, rep, "RECOVCLS_OUT") {
		return nil
	}

	// Shear maps.
	gamma1, gamma2 := map[int][]float64{}, map[int][]float64{}
	if computeShear(config) {
		weights, err := ringWeights(config, rep)
		if err != nil {
			return err
		}
		for i := 0; i < reg.NFields(); i++ {
			if reg.Field(i).Type != fields.Convergence {
				continue
			}
			rep.Infof("will compute shear for %s", reg.Field(i).Name())

			var elm *harmonic.Alm
			switch {
			case config.Dist == Homogeneous:
				elm = harmonic.NewAlm(lmax)
			case config.Dist == Gaussian && alms != nil && i < len(alms):
				elm = harmonic.NewAlm(lmax)
				healpix.Kappa2ShearE(alms[i], elm)
			default:
				// Lognormal maps (and integrated convergence fields) only
				// exist in pixel space; go back to harmonic space first.
				if lmax > int(config.NSide) {
					rep.Warnf("LMAX > NSIDE introduces noise in the " +
						"transformation")
				}
				klm, err := pix.Map2Alm(ms[i], lmax, weights)
				if err != nil {
					return err
				}
				healpix.Kappa2ShearE(klm, klm)
				elm = klm
			}

			if enabled(config.ShearAlmPrefix) {
				fname := fmt.Sprintf("%s%s.dat", config.ShearAlmPrefix,
					reg.Field(i).Name())
				if err := writeAlms(fname, []string{reg.Field(i).Name()},
					[]*harmonic.Alm{elm}); err != nil {
					return err
				}
			}

			g1, g2 := pix.Alm2MapSpin2(elm)
			gamma1[i], gamma2[i] = g1, g2
		}
		if enabled(config.ShearMapOut) {
			if err := writeShearMaps(config.ShearMapOut, reg, pix, gamma1,
				gamma2); err != nil {
				return err
			}
			rep.Infof(">> shear maps written to %s", config.ShearMapOut)
		}
	}
	if exitAt(config, rep, "SHEAR_ALM_PREFIX") || exitAt(config, rep, "SHEAR_MAP_OUT") {
		return nil
	}

	// Density maps to observed counts.
	sel, err := obs.LoadSelection(config.SelecPrefix, reg, pix.Npix(),
		config.GalDensity)
	if err != nil {
		return err
	}
	if config.Poisson == 1 {
		rep.Infof("Poisson sampling the galaxy fields")
	} else {
		rep.Infof("using expected number density for the galaxy fields")
	}
	if err := obs.Observe(rep, ms, reg, sel, config.Poisson == 1,
		config.RndSeed, workers); err != nil {
		return err
	}
	if enabled(config.MapWerOut) {
		if err := writeMaps(config.MapWerOut, reg, pix, ms); err != nil {
			return err
		}
		rep.Infof(">> observed maps written to %s", config.MapWerOut)
	}
	if exitAt(config, rep, "MAPWER_OUT") {
		return nil
	}

	// Catalogue.
	if enabled(config.CatalogOut) {
		rep.Infof("generating and writing catalog")
		gen := rand.New(rand.NewSource(uint64(config.RndSeed)))
		opt := obs.CatalogOptions{
			Cols:         config.CatalogCols,
			EllipSigma:   config.EllipSigma,
			AngularCoord: int(config.AngularCoord),
		}
		if err := obs.WriteCatalog(rep, config.CatalogOut, reg, ms, gamma1,
			gamma2, sel, pix, gen, opt); err != nil {
			return err
		}
		rep.Infof(">> catalog written to %s", config.CatalogOut)
	}

	return nil
}

// exitAt reports whether the named output stage is the configured stopping
// point.
func exitAt(config *Config, rep *report.Reporter, key string) bool {
	if config.ExitAt != key {
		return false
	}
	rep.Infof("EXIT_AT %s reached", key)
	return true
}

func outputLRange(config *Config, rep *report.Reporter,
	lmin, lmax int) (int, int) {
	lo, hi := int(config.LRangeOut[0]), int(config.LRangeOut[1])
	if hi > lmax {
		rep.Warnf("LRANGE_OUT beyond LRANGE upper bound, will use the " +
			"latter instead")
		hi = lmax
	}
	if lo < lmin {
		rep.Warnf("LRANGE_OUT beyond LRANGE lower bound, will use the " +
			"latter instead")
		lo = lmin
	}
	return lo, hi
}

// pixelWindow loads the tabulated pixel window or falls back to the
// Gaussian approximation.
func pixelWindow(config *Config, rep *report.Reporter) ([]float64, error) {
	if enabled(config.PixWinFile) {
		return healpix.LoadWindow(config.PixWinFile, int(config.NSide))
	}
	rep.Warnf("no PIXWIN_FILE given, using the Gaussian pixel window " +
		"approximation")
	return healpix.ApproxWindow(int(config.NSide)), nil
}

// ringWeights loads the forward-transform ring weights when requested;
// nil means unit weights.
func ringWeights(config *Config, rep *report.Reporter) ([]float64, error) {
	if config.UseHealpixWgts != 1 {
		return nil, nil
	}
	if !enabled(config.RingWeightFile) {
		rep.Warnf("could not load ring weights, using 1.0 instead")
		return nil, nil
	}
	rows, err := table.Load(config.RingWeightFile)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		// The tabulated values are offsets from unity.
		out[i] = 1 + row[0]
	}
	if len(out) != 2*int(config.NSide) {
		return nil, report.Errorf(report.InputError,
			"the ring weight file %s has %d entries, expected %d",
			config.RingWeightFile, len(out), 2*config.NSide)
	}
	return out, nil
}

// computeShear reports whether any requested output needs the shear maps.
func computeShear(config *Config) bool {
	if enabled(config.ShearAlmPrefix) || enabled(config.ShearMapOut) {
		return true
	}
	if enabled(config.CatalogOut) {
		for _, c := range config.CatalogCols {
			switch c {
			case "gamma1", "gamma2", "ellip1", "ellip2":
				return true
			}
		}
	}
	return false
}

// writeRegularizedCls converts the regularised covariance stack back to
// output spectra: for lognormal runs the associated-Gaussian spectra go
// through the inverse transform to lognormal ones first. Output goes to
// per-pair files or to a single table, like the other spectrum outputs.
func writeRegularizedCls(config *Config, reg *fields.Registry,
	stack *cov.Stack, tr *dlt.Transform, nls int, rep *report.Reporter) error {

	out := spectra.NewSet(reg, rep)
	ls := make([]float64, nls)
	for l := range ls {
		ls[l] = float64(l)
	}
	var g errgroup.Group
	pairs := [][2]int{}
	for i := 0; i < reg.NFields(); i++ {
		for j := i; j < reg.NFields(); j++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	cls := make([][]float64, len(pairs))
	for k, pair := range pairs {
		k, i, j := k, pair[0], pair[1]
		g.Go(func() error {
			cl := make([]float64, nls)
			for l := 0; l < nls; l++ {
				cl[l] = stack.M[l].At(i, j)
			}
			if config.Dist == Lognormal {
				a, b := reg.Field(i), reg.Field(j)
				spectra.LognormalCl(tr, cl,
					(a.Mean+a.Shift)*(b.Mean+b.Shift))
			}
			cls[k] = cl
			return nil
		})
	}
	g.Wait()
	for k, pair := range pairs {
		if err := out.Add(pair[0], pair[1], ls, cls[k]); err != nil {
			return err
		}
	}
	return writeSpectra(config.RegClPrefix, out)
}
