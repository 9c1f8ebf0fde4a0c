package metadata

var (
	distPref  = [5]byte{'d', 'i', 's', 't', ':'}
	pkgPref   = [4]byte{'p', 'k', 'g', ':'}
	stackPref = [6]byte{'s', 't', 'a', 'c', 'k', ':'}
	regPref   = [4]byte{'r', 'e', 'g', ':'}
)

const sep = '/'

func prefixed(pref []byte, parts ...string) []byte {
	key := make([]byte, 0, 64)
	key = append(key, pref...)
	for i, part := range parts {
		if i > 0 {
			key = append(key, sep)
		}
		key = append(key, part...)
	}
	return key
}

func distKey(path string) []byte {
	return prefixed(distPref[:], path)
}

func pkgKey(name, path string) []byte {
	return prefixed(pkgPref[:], name, path)
}

func pkgNamePrefix(name string) []byte {
	return append(prefixed(pkgPref[:], name), sep)
}

func stackKey(name string) []byte {
	return prefixed(stackPref[:], name)
}

func regKey(stack, pkgName string) []byte {
	return prefixed(regPref[:], stack, pkgName)
}

func regStackPrefix(stack string) []byte {
	return append(prefixed(regPref[:], stack), sep)
}
