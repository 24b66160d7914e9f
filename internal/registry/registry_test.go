package registry

import "testing"

const (
	testBean      = "0xBEA0000029AD1c77D3d5D23Ba2D8893dB9d1Efab"
	testBeanstalk = "0xC1E088fC1323b20BCBee9bd1B9fC9546db5624C5"
	testWeth      = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	testWell      = "0xBEA0e11282e2bB5893bEcE110cF199501e872bAd"
)

func TestRegistryParsesEntries(t *testing.T) {
	reg, err := New(Config{
		BeanToken: testBean,
		Beanstalk: testBeanstalk,
		Tokens:    []string{testWeth + ":WETH:18"},
		Pools:     []string{testWell + ":" + testBean + "/" + testWeth},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if !reg.IsBean("0xbea0000029ad1c77d3d5d23ba2d8893db9d1efab") {
		t.Fatalf("bean not recognized")
	}
	if reg.Decimals(testWeth) != 18 || reg.Decimals(testBean) != 6 {
		t.Fatalf("decimals mismatch")
	}

	pool, ok := reg.Pool(testWell)
	if !ok {
		t.Fatalf("pool missing")
	}
	if len(pool.Tokens) != 2 || pool.Tokens[0] != "0xbea0000029ad1c77d3d5d23ba2d8893db9d1efab" {
		t.Fatalf("pool tokens mismatch: %v", pool.Tokens)
	}
	if len(reg.Addresses()) != 3 {
		t.Fatalf("addresses mismatch: %v", reg.Addresses())
	}
}

func TestRegistryRejectsUnknownPoolToken(t *testing.T) {
	_, err := New(Config{
		BeanToken: testBean,
		Beanstalk: testBeanstalk,
		Pools:     []string{testWell + ":" + testBean + "/" + testWeth},
	})
	if err == nil {
		t.Fatalf("expected error for unknown token")
	}
}

func TestRegistryRejectsMalformedEntries(t *testing.T) {
	cases := []Config{
		{BeanToken: "nope", Beanstalk: testBeanstalk},
		{BeanToken: testBean, Beanstalk: testBeanstalk, Tokens: []string{testWeth + ":WETH"}},
		{BeanToken: testBean, Beanstalk: testBeanstalk, Tokens: []string{testWeth + ":WETH:x"}},
		{BeanToken: testBean, Beanstalk: testBeanstalk, Pools: []string{testWell + ":" + testBean}},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestMissingTokens(t *testing.T) {
	cfg := Config{
		BeanToken: testBean,
		Beanstalk: testBeanstalk,
		Pools:     []string{testWell + ":" + testBean + "/" + testWeth},
	}
	missing, err := cfg.MissingTokens()
	if err != nil {
		t.Fatalf("missing tokens: %v", err)
	}
	if len(missing) != 1 || missing[0] != "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2" {
		t.Fatalf("missing mismatch: %v", missing)
	}

	cfg.Tokens = []string{testWeth + ":WETH:18"}
	if missing, _ := cfg.MissingTokens(); len(missing) != 0 {
		t.Fatalf("expected no missing tokens, got %v", missing)
	}
}
