package config

// Feature sets of the cross-site experiments and their presentation names.
var (
	DefaultData = []string{
		"173", "473", "873", "1273",
		"S0_R4", "S0_R4_pca", "S4_R4", "S4_R4_pca", "S8_R4", "S8_R4_pca",
		"S0_R8", "S0_R8_pca", "S4_R8", "S4_R8_pca", "S8_R8", "S8_R8_pca",
	}
	DefaultDataLabels = []string{
		"173", "473", "873", "1273",
		"S0_R4", "S0_R4 + PCA", "S4_R4", "S4_R4 + PCA", "S8_R4", "S8_R4 + PCA",
		"S0_R8", "S0_R8 + PCA", "S4_R8", "S4_R8 + PCA", "S8_R8", "S8_R8 + PCA",
	}
)

// Models summarised by default. xgb is trained separately and left out.
var (
	DefaultModels = []string{
		"lin_reg", "ridge", "rf", "rvr_lin", "kernel_ridge",
		"gauss", "lasso", "elasticnet", "rvr_poly",
	}
	DefaultModelLabels = []string{
		"LiR", "RR", "RFR", "RVRlin", "KRR",
		"GPR", "LR", "ENR", "RVRpoly",
	}
)

// DefaultSelected lists the workflows kept in the selected summary.
var DefaultSelected = []string{
	"173 + GPR",
	"473 + LR",
	"473 + RVRpoly",
	"1273 + GPR",
	"S4_R4 + RR",
	"S4_R4 + GPR",
	"S4_R4 + PCA + RFR",
	"S4_R4 + PCA + RVRlin",
	"S8_R4 + PCA + RVRlin",
	"S8_R4 + PCA + GPR",
	"S0_R8 + PCA + ENR",
	"S0_R8 + PCA + RVRpoly",
	"S4_R8 + RR",
	"S8_R8 + RR",
	"S8_R8 + KRR",
	"S8_R8 + PCA + ENR",
	"S4_R4 + PCA + GPR",
	"S4_R4 + RVRlin",
	"S4_R4 + PCA + RR",
	"S4_R8 + RVRlin",
	"S8_R4 + KRR",
	"S0_R4 + LR",
	"S8_R4 + PCA + RVRpoly",
	"S0_R8 + RVRpoly",
	"S4_R8 + LR",
	"873 + GPR",
	"S8_R4 + PCA + LR",
	"1273 + RVRpoly",
	"873 + ENR",
	"173 + LR",
	"S0_R8 + PCA + LR",
	"173 + RFR",
}
