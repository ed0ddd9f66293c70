package pipeline

import "net"

// isSubnet reports whether target is a CIDR-style subnet identifier
// (e.g. "10.0.0.0/24") rather than a plain user id. The sentinel
// "0.0.0.0" (with no prefix) is also accepted and matches every user.
func isSubnet(target string) bool {
	if target == "0.0.0.0" {
		return true
	}
	_, _, err := net.ParseCIDR(target)
	return err == nil
}

// expandSubnet resolves target against the known user list, returning
// the users whose id parses as an IPv4 address inside the subnet. The
// "0.0.0.0" sentinel returns the full user list, preserving order.
func expandSubnet(target string, allUsers []string) []string {
	if target == "0.0.0.0" {
		out := make([]string, len(allUsers))
		copy(out, allUsers)
		return out
	}

	_, ipnet, err := net.ParseCIDR(target)
	if err != nil {
		return nil
	}

	var matched []string
	for _, user := range allUsers {
		ip := net.ParseIP(user).To4()
		if ip == nil {
			continue
		}
		if ipnet.Contains(ip) {
			matched = append(matched, user)
		}
	}
	return matched
}
