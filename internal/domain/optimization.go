package domain

// Method identifies an allocation optimizer.
type Method string

// Supported methods.
const (
	MethodHRP Method = "hrp"
	MethodGMV Method = "gmv"
	MethodMVO Method = "mvo"
)

// AllMethods lists the methods run by a comparison, in submission order.
var AllMethods = []Method{MethodHRP, MethodGMV, MethodMVO}

// MethodNames holds display names.
var MethodNames = map[Method]string{
	MethodHRP: "HRP (Hierarchical Risk Parity)",
	MethodGMV: "GMV (Global Minimum Variance)",
	MethodMVO: "MVO (Mean-Variance Max Sharpe)",
}

// DisplayName returns the human readable method name.
func (m Method) DisplayName() string {
	if n, ok := MethodNames[m]; ok {
		return n
	}
	return string(m)
}

// OptimizationResult is produced by one optimizer call and consumed immediately
// by the engine. FallbackReason is set only when FallbackUsed is true.
type OptimizationResult struct {
	Weights        Weights
	FallbackUsed   bool
	FallbackReason string
	Dendrogram     *Dendrogram // HRP only
}

// Dendrogram is hierarchical clustering tree data for visualization.
// Field layout matches scipy's dendrogram(no_plot=True) output.
type Dendrogram struct {
	ICoord [][]float64 `json:"icoord"`
	DCoord [][]float64 `json:"dcoord"`
	IVL    []string    `json:"ivl"`
	Leaves []int       `json:"leaves"`
}

// MethodParams describes parameters used by a method, for transparency.
type MethodParams struct {
	LinkageMethod string `json:"linkage_method,omitempty"`
}

// ParamsFor returns the transparency record for a method.
func ParamsFor(m Method) MethodParams {
	if m == MethodHRP {
		return MethodParams{LinkageMethod: "Ward Linkage"}
	}
	return MethodParams{}
}

// AssetPoint is one asset on the risk/return plane.
type AssetPoint struct {
	Ticker     string  `json:"ticker"`
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// RiskReturnPoint is one portfolio on the risk/return plane.
type RiskReturnPoint struct {
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// EfficientFrontier holds per-asset points, the frontier curve and
// Monte Carlo random portfolios.
type EfficientFrontier struct {
	Assets      []AssetPoint      `json:"assets"`
	Curve       []RiskReturnPoint `json:"curve"`
	Simulations []RiskReturnPoint `json:"simulations"`
}
