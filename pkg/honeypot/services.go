package honeypot

import "fmt"

// Service is what a listening port pretends to be.
type Service struct {
	Name          string
	SimulatedPort int
	Banner        []byte
}

// unprivileged port -> standard port it impersonates
var simulatedPorts = map[int]int{
	2222:  22,
	2323:  23,
	8000:  80,
	8443:  443,
	33060: 3306,
	8080:  8080,
	2121:  21,
	6379:  6379,
	27017: 27017,
}

var serviceNames = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	80:    "HTTP",
	443:   "HTTPS",
	3306:  "MySQL",
	8080:  "HTTP-Proxy",
	6379:  "Redis",
	27017: "MongoDB",
}

// keyed by simulated port, MongoDB waits for the client to speak first
var banners = map[int]string{
	21:   "220 Microsoft FTP Service\r\n",
	22:   "SSH-2.0-OpenSSH_7.4p1 Ubuntu-10\r\n",
	23:   "\r\n\r\nWelcome to Microsoft Telnet Service\r\n\r\nlogin: ",
	80:   "HTTP/1.1 200 OK\r\nServer: Apache/2.4.41 (Ubuntu)\r\nContent-Type: text/html\r\n\r\n<html><head><title>Welcome</title></head><body><h1>It works!</h1></body></html>",
	443:  "HTTP/1.1 200 OK\r\nServer: nginx/1.18.0\r\n\r\n",
	3306: "J\x00\x00\x00\x0a5.7.32-0ubuntu0.18.04.1\x00",
	8080: "HTTP/1.1 200 OK\r\nServer: Apache-Coyote/1.1\r\nContent-Type: text/html\r\n\r\n<html><body><h1>Apache Tomcat</h1></body></html>",
	6379: "-ERR unknown command\r\n",
}

var (
	defaultHighPorts = []int{2222, 2323, 8000, 8443, 33060, 8080, 2121}
	defaultLowPorts  = []int{22, 23, 80, 443, 3306, 8080}
)

// DefaultPorts is the port set used when none is configured. The high
// port set does not need privileges to bind.
func DefaultPorts(highPortMode bool) []int {
	src := defaultLowPorts
	if highPortMode {
		src = defaultHighPorts
	}

	ret := make([]int, len(src))
	copy(ret, src)

	return ret
}

// Lookup resolves the service simulated on a listening port. Unknown ports
// simulate themselves, are named "Port-<n>" and send no banner.
func Lookup(port int) Service {
	simulated, ok := simulatedPorts[port]
	if !ok {
		simulated = port
	}

	svc := Service{SimulatedPort: simulated}

	if name, ok := serviceNames[simulated]; ok {
		svc.Name = name
	} else {
		svc.Name = fmt.Sprintf("Port-%d", port)
	}

	if banner := banners[simulated]; banner != "" {
		svc.Banner = []byte(banner)
	}

	return svc
}
