// config_test.go tests config files
package config

import (
	"os"
	"testing"
)

// fileToTest is a relative path to the configuration file to test (ie. fundadp/cmd/conf.json)
var fileToTest string = "../../cmd/conf.json"

// TestConfig extracts config from a file and checks values loaded
func TestConfig(t *testing.T) {
	//extract configuration
	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
	} else {
		// lets check the port
		if conf.Port != "3030" {
			t.Errorf("config port is not the expected %s", conf.Port)
		}
		// and the chain connection
		if conf.Node != "http://localhost:8545" {
			t.Errorf("node does not match the expected %s", conf.Node)
		}
		if conf.Contract != "0x5fbdb2315678afecb367f032d93f642f64180aa3" {
			t.Errorf("contract does not match the expected %s", conf.Contract)
		}
		if conf.AvgBlock != 10 {
			t.Errorf("avgblock does not match the expected %d", conf.AvgBlock)
		}
	}
}

// TestConfigEnv checks OS ENV variables override values read from file
func TestConfigEnv(t *testing.T) {
	os.Setenv("FUND_NODE", "http://localhost:9545")
	os.Setenv("FUND_AVGBLOCK", "15")
	defer func() {
		os.Unsetenv("FUND_NODE")
		os.Unsetenv("FUND_AVGBLOCK")
	}()

	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
	}
	if conf.Node != "http://localhost:9545" {
		t.Errorf("node was not overriden by OS ENV, got %s", conf.Node)
	}
	if conf.AvgBlock != 15 {
		t.Errorf("avgblock was not overriden by OS ENV, got %d", conf.AvgBlock)
	}
	// values without an override keep the file values
	if conf.Port != "3030" {
		t.Errorf("config port is not the expected %s", conf.Port)
	}
}
