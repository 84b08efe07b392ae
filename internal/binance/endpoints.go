package binance

const (
	// FuturesBaseURL is the production Binance Futures API URL
	FuturesBaseURL = "https://fapi.binance.com"
	// FuturesTestnetURL is the testnet Binance Futures API URL
	FuturesTestnetURL = "https://testnet.binancefuture.com"
)

// Order endpoints
const (
	PathOrder          = "/fapi/v1/order"
	PathTestOrder      = "/fapi/v1/order/test"
	PathBatchOrders    = "/fapi/v1/batchOrders"
	PathOpenOrder      = "/fapi/v1/openOrder"
	PathOpenOrders     = "/fapi/v1/openOrders"
	PathAllOpenOrders  = "/fapi/v1/allOpenOrders"
	PathAllOrders      = "/fapi/v1/allOrders"
	PathAlgoOrder      = "/fapi/v1/algoOrder"
	PathOpenAlgoOrders = "/fapi/v1/openAlgoOrders"
	PathAllAlgoOrders  = "/fapi/v1/allAlgoOrders"
	PathAlgoOpenOrders = "/fapi/v1/algoOpenOrders"
	PathCountdown      = "/fapi/v1/countdownCancelAll"
)

// Account endpoints
const (
	PathAccount          = "/fapi/v2/account"
	PathBalance          = "/fapi/v2/balance"
	PathPositionRisk     = "/fapi/v2/positionRisk"
	PathLeverage         = "/fapi/v1/leverage"
	PathMarginType       = "/fapi/v1/marginType"
	PathPositionMargin   = "/fapi/v1/positionMargin"
	PathPositionMode     = "/fapi/v1/positionSide/dual"
	PathMultiAssetsMode  = "/fapi/v1/multiAssetsMargin"
	PathIncome           = "/fapi/v1/income"
	PathCommissionRate   = "/fapi/v1/commissionRate"
	PathLeverageBracket  = "/fapi/v1/leverageBracket"
	PathUserTrades       = "/fapi/v1/userTrades"
	PathListenKey        = "/fapi/v1/listenKey"
	PathADLQuantile      = "/fapi/v1/adlQuantile"
	PathForceOrders      = "/fapi/v1/forceOrders"
	PathAPITradingStatus = "/fapi/v1/apiTradingStatus"
)

// Market data endpoints
const (
	PathPing             = "/fapi/v1/ping"
	PathTime             = "/fapi/v1/time"
	PathExchangeInfo     = "/fapi/v1/exchangeInfo"
	PathDepth            = "/fapi/v1/depth"
	PathTrades           = "/fapi/v1/trades"
	PathAggTrades        = "/fapi/v1/aggTrades"
	PathKlines           = "/fapi/v1/klines"
	PathMarkPriceKlines  = "/fapi/v1/markPriceKlines"
	PathPremiumIndex     = "/fapi/v1/premiumIndex"
	PathFundingRate      = "/fapi/v1/fundingRate"
	PathTicker24h        = "/fapi/v1/ticker/24hr"
	PathTickerPrice      = "/fapi/v1/ticker/price"
	PathBookTicker       = "/fapi/v1/ticker/bookTicker"
	PathOpenInterest     = "/fapi/v1/openInterest"
	PathOpenInterestHist = "/futures/data/openInterestHist"
	PathTopLongShortAcct = "/futures/data/topLongShortAccountRatio"
	PathTopLongShortPos  = "/futures/data/topLongShortPositionRatio"
	PathGlobalLongShort  = "/futures/data/globalLongShortAccountRatio"
	PathTakerBuySell     = "/futures/data/takerlongshortRatio"
)
