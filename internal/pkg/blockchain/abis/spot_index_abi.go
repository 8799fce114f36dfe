package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetSpotIndexABI returns the ABI for the index-based batch source: a single
// view returning the full ordered array of 8-decimal spot quotes.
func GetSpotIndexABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [],
			"name": "getSpotQuotes",
			"outputs": [{"name": "", "type": "uint256[]"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}
